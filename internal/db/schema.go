package db

// SchemaSQL contains the database schema initialization SQL.
const SchemaSQL = `
    -- ==========================================================================
    -- TASK TABLE
    -- ==========================================================================
    DEFINE TABLE IF NOT EXISTS task SCHEMAFULL;
    DEFINE FIELD IF NOT EXISTS scope ON task TYPE string ASSERT $value IN ["ALL", "SELECTED"];
    DEFINE FIELD IF NOT EXISTS group_ids ON task TYPE array<int>;
    DEFINE FIELD IF NOT EXISTS post_limit ON task TYPE int DEFAULT 0;
    DEFINE FIELD IF NOT EXISTS status ON task TYPE string DEFAULT "pending";
    DEFINE FIELD IF NOT EXISTS processed_items ON task TYPE int DEFAULT 0;
    DEFINE FIELD IF NOT EXISTS progress ON task TYPE float DEFAULT 0.0;
    -- Checkpoint is versioned; FLEXIBLE keeps fields added by newer builds.
    DEFINE FIELD IF NOT EXISTS checkpoint ON task TYPE option<object> FLEXIBLE;
    DEFINE FIELD IF NOT EXISTS error ON task TYPE option<string>;
    DEFINE FIELD IF NOT EXISTS created_at ON task TYPE datetime DEFAULT time::now();
    DEFINE FIELD IF NOT EXISTS updated_at ON task TYPE datetime VALUE time::now();

    DEFINE INDEX IF NOT EXISTS task_status ON task FIELDS status;

    -- ==========================================================================
    -- POST / COMMENT TABLES
    -- ==========================================================================
    -- Payload shapes come from upstream and change without notice.
    DEFINE TABLE IF NOT EXISTS post SCHEMALESS;
    DEFINE INDEX IF NOT EXISTS post_owner ON post FIELDS owner_id, post_id UNIQUE;

    DEFINE TABLE IF NOT EXISTS comment SCHEMALESS;
    DEFINE INDEX IF NOT EXISTS comment_owner ON comment FIELDS owner_id, comment_id UNIQUE;
    DEFINE INDEX IF NOT EXISTS comment_post ON comment FIELDS owner_id, post_id;

    -- ==========================================================================
    -- KEYWORD TABLE
    -- ==========================================================================
    DEFINE TABLE IF NOT EXISTS keyword SCHEMAFULL;
    DEFINE FIELD IF NOT EXISTS word ON keyword TYPE string;
    DEFINE FIELD IF NOT EXISTS normalized_word ON keyword TYPE string;
    DEFINE FIELD IF NOT EXISTS is_phrase ON keyword TYPE bool DEFAULT false;
    DEFINE FIELD IF NOT EXISTS created_at ON keyword TYPE datetime DEFAULT time::now();

    -- ==========================================================================
    -- KEYWORD_MATCH TABLE (derived index, rows only created/deleted)
    -- ==========================================================================
    DEFINE TABLE IF NOT EXISTS keyword_match SCHEMAFULL;
    DEFINE FIELD IF NOT EXISTS record_kind ON keyword_match TYPE string ASSERT $value IN ["post", "comment"];
    DEFINE FIELD IF NOT EXISTS record_key ON keyword_match TYPE string;
    DEFINE FIELD IF NOT EXISTS keyword ON keyword_match TYPE string;
    DEFINE FIELD IF NOT EXISTS source ON keyword_match TYPE string ASSERT $value IN ["OWN", "PARENT"];
    DEFINE FIELD IF NOT EXISTS created_at ON keyword_match TYPE datetime DEFAULT time::now();

    DEFINE INDEX IF NOT EXISTS keyword_match_unique ON keyword_match FIELDS record_kind, record_key, keyword, source UNIQUE;
    DEFINE INDEX IF NOT EXISTS keyword_match_record ON keyword_match FIELDS record_kind, record_key, source;
    DEFINE INDEX IF NOT EXISTS keyword_match_keyword ON keyword_match FIELDS keyword;
`
