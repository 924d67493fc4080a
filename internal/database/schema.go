package database

const schema = `
CREATE TABLE IF NOT EXISTS users (
    id BIGINT AUTO_INCREMENT PRIMARY KEY,
    telegram_id BIGINT NOT NULL UNIQUE,
    username VARCHAR(255),
    first_name VARCHAR(255),
    last_name VARCHAR(255),
    balance INT NOT NULL DEFAULT 0,
    is_banned TINYINT(1) NOT NULL DEFAULT 0,
    is_registered TINYINT(1) NOT NULL DEFAULT 0,
    last_bonus_date DATE,
    created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
    updated_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP ON UPDATE CURRENT_TIMESTAMP
);

CREATE TABLE IF NOT EXISTS token_transactions (
    id BIGINT AUTO_INCREMENT PRIMARY KEY,
    user_id BIGINT NOT NULL,
    amount INT NOT NULL,
    kind VARCHAR(16) NOT NULL,
    reason VARCHAR(255),
    actor_id BIGINT,
    created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
    INDEX idx_tx_user (user_id),
    FOREIGN KEY (user_id) REFERENCES users(id)
);

CREATE TABLE IF NOT EXISTS jobs (
    id BIGINT AUTO_INCREMENT PRIMARY KEY,
    user_id BIGINT NOT NULL,
    source_url TEXT NOT NULL,
    kind VARCHAR(16) NOT NULL,
    format VARCHAR(16) NOT NULL,
    requested_delivery VARCHAR(16) NOT NULL,
    delivered_via VARCHAR(16),
    status VARCHAR(16) NOT NULL,
    failure_kind VARCHAR(16),
    title VARCHAR(512),
    artifact_size BIGINT,
    duration VARCHAR(16),
    storage_link TEXT,
    created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
    completed_at TIMESTAMP NULL,
    INDEX idx_jobs_user (user_id),
    FOREIGN KEY (user_id) REFERENCES users(id)
);

CREATE TABLE IF NOT EXISTS topup_requests (
    id BIGINT AUTO_INCREMENT PRIMARY KEY,
    user_id BIGINT NOT NULL,
    token_amount INT NOT NULL,
    package_id VARCHAR(32) NOT NULL,
    price_minor_units INT NOT NULL,
    status VARCHAR(16) NOT NULL DEFAULT 'pending',
    proof_received TINYINT(1) NOT NULL DEFAULT 0,
    operator_actor_id BIGINT,
    notes VARCHAR(255),
    created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
    processed_at TIMESTAMP NULL,
    INDEX idx_topups_status (status),
    FOREIGN KEY (user_id) REFERENCES users(id)
);
`
