/**
 * Copyright 2025-present Coinbase Global, Inc.
 *
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *  http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

package database

const (
	schemaDocuments = `
	-- Every collection lives in one table keyed by (collection, id)
	CREATE TABLE IF NOT EXISTS documents (
		collection TEXT NOT NULL,
		id TEXT NOT NULL,
		data TEXT NOT NULL,
		created_at TEXT NOT NULL,
		updated_at TEXT NOT NULL,
		PRIMARY KEY (collection, id)
	);

	-- Most lookups are per user
	CREATE INDEX IF NOT EXISTS idx_documents_user
		ON documents(collection, json_extract(data, '$.userId'));
	-- Deposits are matched by payment intent, recurring investments by subscription
	CREATE INDEX IF NOT EXISTS idx_documents_payment_intent
		ON documents(collection, json_extract(data, '$.paymentIntentId'));
	CREATE INDEX IF NOT EXISTS idx_documents_subscription
		ON documents(collection, json_extract(data, '$.subscriptionId'));
	-- Listing order
	CREATE INDEX IF NOT EXISTS idx_documents_created_at
		ON documents(collection, created_at);
	`

	queryGetDocument = `
		SELECT data, created_at, updated_at
		FROM documents
		WHERE collection = ? AND id = ?`

	queryListDocuments = `
		SELECT id, data, created_at, updated_at
		FROM documents
		WHERE collection = ?`

	queryOrderDocuments = `
		ORDER BY created_at, id`

	queryInsertDocument = `
		INSERT INTO documents (collection, id, data, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT (collection, id) DO NOTHING`

	queryUpsertDocument = `
		INSERT INTO documents (collection, id, data, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT (collection, id) DO UPDATE SET
			data = excluded.data,
			updated_at = excluded.updated_at`

	queryUpdateDocument = `
		UPDATE documents
		SET data = ?, updated_at = ?
		WHERE collection = ? AND id = ?`

	queryCountDocuments = `
		SELECT COUNT(*) FROM documents WHERE collection = ?`
)
