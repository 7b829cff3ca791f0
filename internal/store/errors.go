package store

import "codeberg.org/mutker/carbonwise/internal/errors"

const (
	ErrInvalidConfig = errors.ErrInvalidConfig
	ErrInvalidDBPath = errors.ErrorCode("storage_invalid_db_path")

	// Schema Errors
	ErrSchemaInitFailed       = errors.ErrorCode("storage_schema_init_failed")
	ErrSchemaValidationFailed = errors.ErrorCode("storage_schema_validation_failed")
	ErrSchemaMigrationFailed  = errors.ErrorCode("storage_schema_migration_failed")
	ErrTransactionFailed      = errors.ErrorCode("storage_transaction_failed")

	// Storage Errors
	ErrStorageInit   = errors.ErrStorageInit
	ErrStorageClose  = errors.ErrorCode("storage_close_failed")
	ErrStorageAccess = errors.ErrorCode("storage_access_failed")
	ErrInvalidRecord = errors.ErrorCode("storage_invalid_record")
)
