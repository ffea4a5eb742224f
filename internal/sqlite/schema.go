package sqlite

// Internal table DDL. Created on attach, before any content table.
const (
	createRegistry = `CREATE TABLE IF NOT EXISTS "_schemas" (
    "name" TEXT PRIMARY KEY,
    "type" TEXT NOT NULL,
    "hash" TEXT NOT NULL,
    "fields_json" TEXT NOT NULL
)`

	createMedia = `CREATE TABLE IF NOT EXISTS "_media" (
    "id" TEXT PRIMARY KEY,
    "filename" TEXT NOT NULL,
    "path" TEXT NOT NULL,
    "mimetype" TEXT NOT NULL,
    "size" INTEGER NOT NULL,
    "width" INTEGER,
    "height" INTEGER,
    "alt" TEXT,
    "created_at" TEXT NOT NULL
)`

	idxMediaCreated = `CREATE INDEX IF NOT EXISTS "idx_media_created" ON "_media"("created_at")`
)

// internalDDL lists the engine-owned tables and indexes in creation order.
var internalDDL = []string{
	createRegistry,
	createMedia,
	idxMediaCreated,
}
