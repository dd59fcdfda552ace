package sql

import (
	"database/sql"
	_ "embed"
	"fmt"
	"log"
)

//go:embed init.sql
var initSQL string

//go:embed project_chunks.sql
var projectChunksSQL string

//go:embed framework_chunks.sql
var frameworkChunksSQL string

//go:embed analysis.sql
var analysisSQL string

// Function lists for verification
var ProjectChunksFunctions = []string{
	"init_project_chunks",
	"insert_project_chunk",
	"match_project_chunks",
	"delete_project_chunks_by_document",
}

var FrameworkChunksFunctions = []string{
	"init_framework_chunks",
	"insert_framework_chunk",
	"match_framework_chunks",
	"delete_framework_chunks_by_document",
}

var AnalysisFunctions = []string{
	"init_analysis",
	"insert_analysis_type",
	"select_analysis_type",
	"select_all_analysis_types",
	"update_analysis_type",
	"insert_analysis_result",
}

// Init intializes db extensions
func Init(db *sql.DB) error {
	_, err := db.Exec(initSQL)
	if err != nil {
		return fmt.Errorf("error executing schema SQL: %w", err)
	}

	log.Println("Database extensions initialized successfully")
	return nil
}

// LoadProjectChunksSql loads project chunk related SQL functions
func LoadProjectChunksSql(db *sql.DB, force bool) error {
	if !force {
		exist, err := checkFunctions(db, ProjectChunksFunctions)
		if err != nil {
			return fmt.Errorf("error checking existing project chunks functions: %w", err)
		}
		if exist {
			return nil
		}
	}

	_, err := db.Exec(projectChunksSQL)
	if err != nil {
		return fmt.Errorf("error executing project chunks SQL: %w", err)
	}

	exist, err := checkFunctions(db, ProjectChunksFunctions)
	if err != nil {
		return fmt.Errorf("error checking existing functions: %w", err)
	}
	if !exist {
		return fmt.Errorf("not all required SQL functions were created")
	}

	log.Println("SQL project chunks functions loaded successfully")
	return nil
}

// LoadFrameworkChunksSql loads framework chunk related SQL functions
func LoadFrameworkChunksSql(db *sql.DB, force bool) error {
	if !force {
		exist, err := checkFunctions(db, FrameworkChunksFunctions)
		if err != nil {
			return fmt.Errorf("error checking existing framework chunks functions: %w", err)
		}
		if exist {
			return nil
		}
	}

	_, err := db.Exec(frameworkChunksSQL)
	if err != nil {
		return fmt.Errorf("error executing framework chunks SQL: %w", err)
	}

	exist, err := checkFunctions(db, FrameworkChunksFunctions)
	if err != nil {
		return fmt.Errorf("error checking existing functions: %w", err)
	}
	if !exist {
		return fmt.Errorf("not all required SQL functions were created")
	}

	log.Println("SQL framework chunks functions loaded successfully")
	return nil
}

// LoadAnalysisSql loads analysis type and result related SQL functions
func LoadAnalysisSql(db *sql.DB, force bool) error {
	if !force {
		exist, err := checkFunctions(db, AnalysisFunctions)
		if err != nil {
			return fmt.Errorf("error checking existing analysis functions: %w", err)
		}
		if exist {
			return nil
		}
	}

	_, err := db.Exec(analysisSQL)
	if err != nil {
		return fmt.Errorf("error executing analysis SQL: %w", err)
	}

	exist, err := checkFunctions(db, AnalysisFunctions)
	if err != nil {
		return fmt.Errorf("error checking existing functions: %w", err)
	}
	if !exist {
		return fmt.Errorf("not all required SQL functions were created")
	}

	log.Println("SQL analysis functions loaded successfully")
	return nil
}

// LoadAllSql loads all SQL functions
func LoadAllSql(db *sql.DB, force bool) error {
	if err := LoadProjectChunksSql(db, force); err != nil {
		return err
	}

	if err := LoadFrameworkChunksSql(db, force); err != nil {
		return err
	}

	if err := LoadAnalysisSql(db, force); err != nil {
		return err
	}

	return nil
}

// checkFunctions verifies that all required functions exist in the database
func checkFunctions(db *sql.DB, sqlFunctions []string) (bool, error) {
	var allExist bool
	for _, f := range sqlFunctions {
		err := db.QueryRow(
			`SELECT EXISTS(SELECT 1 FROM pg_proc WHERE proname = $1);`,
			f,
		).Scan(&allExist)
		if err != nil {
			return false, fmt.Errorf("error checking existence of function %s: %w", f, err)
		}
		if !allExist {
			log.Printf("Function %s does not exist", f)
			break
		}
	}
	return allExist, nil
}
