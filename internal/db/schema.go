package db

// SchemaSQL defines the run ledger.
const SchemaSQL = `
    -- ==========================================================================
    -- RUN TABLE
    -- ==========================================================================
    DEFINE TABLE IF NOT EXISTS run SCHEMAFULL;
    DEFINE FIELD IF NOT EXISTS command ON run TYPE string;
    DEFINE FIELD IF NOT EXISTS tag ON run TYPE option<string>;
    DEFINE FIELD IF NOT EXISTS status ON run TYPE string
        ASSERT $value IN ["running", "completed", "aborted", "failed"];
    DEFINE FIELD IF NOT EXISTS source ON run TYPE string;
    DEFINE FIELD IF NOT EXISTS total ON run TYPE int DEFAULT 0;
    DEFINE FIELD IF NOT EXISTS succeeded ON run TYPE int DEFAULT 0;
    DEFINE FIELD IF NOT EXISTS failed ON run TYPE int DEFAULT 0;
    DEFINE FIELD IF NOT EXISTS unprocessed ON run TYPE int DEFAULT 0;
    DEFINE FIELD IF NOT EXISTS error ON run TYPE option<string>;
    DEFINE FIELD IF NOT EXISTS started_at ON run TYPE datetime DEFAULT time::now();
    DEFINE FIELD IF NOT EXISTS completed_at ON run TYPE option<datetime>;

    DEFINE INDEX IF NOT EXISTS run_command ON run FIELDS command;
    DEFINE INDEX IF NOT EXISTS run_started ON run FIELDS started_at;

    -- ==========================================================================
    -- RUN FAILURE TABLE
    -- ==========================================================================
    DEFINE TABLE IF NOT EXISTS run_failure SCHEMAFULL;
    DEFINE FIELD IF NOT EXISTS run ON run_failure TYPE record<run>;
    DEFINE FIELD IF NOT EXISTS stage ON run_failure TYPE string;
    DEFINE FIELD IF NOT EXISTS identifier ON run_failure TYPE string;
    DEFINE FIELD IF NOT EXISTS reason ON run_failure TYPE string;
    DEFINE FIELD IF NOT EXISTS record ON run_failure TYPE option<object> FLEXIBLE;
    DEFINE FIELD IF NOT EXISTS created_at ON run_failure TYPE datetime DEFAULT time::now();

    DEFINE INDEX IF NOT EXISTS run_failure_run ON run_failure FIELDS run;

    -- ==========================================================================
    -- RUN RECORD TABLE (final state per record)
    -- ==========================================================================
    DEFINE TABLE IF NOT EXISTS run_record SCHEMAFULL;
    DEFINE FIELD IF NOT EXISTS run ON run_record TYPE record<run>;
    DEFINE FIELD IF NOT EXISTS identifier ON run_record TYPE string;
    DEFINE FIELD IF NOT EXISTS state ON run_record TYPE string;
    DEFINE FIELD IF NOT EXISTS remote_id ON run_record TYPE option<string>;

    DEFINE INDEX IF NOT EXISTS run_record_run ON run_record FIELDS run;
    DEFINE INDEX IF NOT EXISTS run_record_identifier ON run_record FIELDS run, identifier UNIQUE;
`
