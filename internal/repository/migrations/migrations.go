package migrations

import "fmt"

// PostgreSQL schema. The lookup tables (api_list, users, api_keys,
// api_permissions) are owned by the management console; creating them
// here keeps fresh environments bootable. gateway_logs is ours.
var PostgresSchema = `
CREATE TABLE IF NOT EXISTS api_list (
    api_id VARCHAR(100) PRIMARY KEY,
    api_name VARCHAR(200) NOT NULL,
    path TEXT NOT NULL,
    method VARCHAR(10) NOT NULL,
    use_yn CHAR(1) NOT NULL DEFAULT 'Y',
    description TEXT,
    flow_data TEXT,
    write_id VARCHAR(100),
    write_date TIMESTAMP WITH TIME ZONE,
    update_id VARCHAR(100),
    update_date TIMESTAMP WITH TIME ZONE
);

CREATE TABLE IF NOT EXISTS users (
    user_id VARCHAR(100) PRIMARY KEY,
    password VARCHAR(200) NOT NULL,
    user_name VARCHAR(200) NOT NULL,
    permission_code VARCHAR(50),
    use_yn CHAR(1) NOT NULL DEFAULT 'Y',
    refresh_token TEXT,
    create_id VARCHAR(100),
    create_date TIMESTAMP WITH TIME ZONE,
    update_id VARCHAR(100),
    update_date TIMESTAMP WITH TIME ZONE
);

CREATE TABLE IF NOT EXISTS api_keys (
    user_id VARCHAR(100) PRIMARY KEY REFERENCES users(user_id),
    api_key VARCHAR(64) UNIQUE NOT NULL,
    comment TEXT,
    generate_date TIMESTAMP WITH TIME ZONE,
    generate_id VARCHAR(100),
    regenerate_date TIMESTAMP WITH TIME ZONE,
    regenerate_id VARCHAR(100)
);

CREATE TABLE IF NOT EXISTS api_permissions (
    api_id VARCHAR(100) NOT NULL,
    method VARCHAR(10) NOT NULL,
    user_id VARCHAR(100) NOT NULL,
    create_id VARCHAR(100),
    create_date TIMESTAMP WITH TIME ZONE,
    update_id VARCHAR(100),
    update_date TIMESTAMP WITH TIME ZONE,
    PRIMARY KEY (api_id, method, user_id)
);

CREATE TABLE IF NOT EXISTS gateway_logs (
    log_id UUID PRIMARY KEY,
    trace_id VARCHAR(64) NOT NULL,
    user_id VARCHAR(100),
    api_id VARCHAR(100) NOT NULL,
    method VARCHAR(10) NOT NULL,
    path TEXT NOT NULL,
    query_param VARCHAR(1000),
    headers VARCHAR(1500),
    body VARCHAR(2000),
    status_code INTEGER,
    response VARCHAR(4000),
    requested_at TIMESTAMP WITH TIME ZONE NOT NULL,
    responded_at TIMESTAMP WITH TIME ZONE NOT NULL,
    latency_ms BIGINT,
    client_ip VARCHAR(45),
    user_agent VARCHAR(500),
    is_success CHAR(1) NOT NULL,
    error_message VARCHAR(500)
);

CREATE INDEX IF NOT EXISTS idx_api_keys_api_key ON api_keys(api_key);
CREATE INDEX IF NOT EXISTS idx_api_permissions_user_api ON api_permissions(user_id, api_id);
CREATE INDEX IF NOT EXISTS idx_gateway_logs_trace_id ON gateway_logs(trace_id);
CREATE INDEX IF NOT EXISTS idx_gateway_logs_user_id ON gateway_logs(user_id);
CREATE INDEX IF NOT EXISTS idx_gateway_logs_api_id ON gateway_logs(api_id);
CREATE INDEX IF NOT EXISTS idx_gateway_logs_requested_at ON gateway_logs(requested_at);
`

// Oracle schema for the audit table. Lookup tables are expected to exist
// on Oracle deployments (the console owns them there).
var OracleSchema = `
BEGIN
    EXECUTE IMMEDIATE 'CREATE TABLE gateway_logs (
        log_id VARCHAR2(36) PRIMARY KEY,
        trace_id VARCHAR2(64) NOT NULL,
        user_id VARCHAR2(100),
        api_id VARCHAR2(100) NOT NULL,
        method VARCHAR2(10) NOT NULL,
        path CLOB NOT NULL,
        query_param VARCHAR2(1000),
        headers VARCHAR2(1500),
        body VARCHAR2(2000),
        status_code NUMBER,
        response CLOB,
        requested_at TIMESTAMP WITH TIME ZONE NOT NULL,
        responded_at TIMESTAMP WITH TIME ZONE NOT NULL,
        latency_ms NUMBER,
        client_ip VARCHAR2(45),
        user_agent VARCHAR2(500),
        is_success CHAR(1) NOT NULL,
        error_message VARCHAR2(500)
    )';
EXCEPTION
    WHEN OTHERS THEN
        IF SQLCODE != -955 THEN
            RAISE;
        END IF;
END;
`

// Couchbase indexes for the audit bucket.
func GetCouchbaseIndexes(bucketName string) []string {
	return []string{
		fmt.Sprintf("CREATE PRIMARY INDEX ON `%s`", bucketName),
		fmt.Sprintf("CREATE INDEX idx_gateway_logs_trace_id ON `%s`(trace_id)", bucketName),
		fmt.Sprintf("CREATE INDEX idx_gateway_logs_user_id ON `%s`(user_id)", bucketName),
		fmt.Sprintf("CREATE INDEX idx_gateway_logs_api_id ON `%s`(api_id)", bucketName),
		fmt.Sprintf("CREATE INDEX idx_gateway_logs_requested_at ON `%s`(requested_at)", bucketName),
	}
}
