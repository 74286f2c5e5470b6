package db

// SchemaSQL defines the job history table. One row per (session, external
// id); the row id is derived from both so re-saving a record overwrites it.
const SchemaSQL = `
    DEFINE TABLE IF NOT EXISTS job_record SCHEMAFULL;
    DEFINE FIELD IF NOT EXISTS session_id ON job_record TYPE string;
    DEFINE FIELD IF NOT EXISTS external_id ON job_record TYPE string;
    DEFINE FIELD IF NOT EXISTS job_id ON job_record TYPE string DEFAULT "";
    DEFINE FIELD IF NOT EXISTS status ON job_record TYPE string;
    DEFINE FIELD IF NOT EXISTS error_message ON job_record TYPE string DEFAULT "";
    DEFINE FIELD IF NOT EXISTS artifact_path ON job_record TYPE string DEFAULT "";
    DEFINE FIELD IF NOT EXISTS fetch_error ON job_record TYPE string DEFAULT "";
    DEFINE FIELD IF NOT EXISTS submitted_at ON job_record TYPE datetime;
    DEFINE FIELD IF NOT EXISTS completed_at ON job_record TYPE option<datetime>;
    DEFINE FIELD IF NOT EXISTS recorded_at ON job_record TYPE datetime DEFAULT time::now();

    DEFINE INDEX IF NOT EXISTS job_record_external ON job_record FIELDS external_id;
    DEFINE INDEX IF NOT EXISTS job_record_recorded ON job_record FIELDS recorded_at;
`
