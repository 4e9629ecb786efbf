package sqlrowstore

// CreateTableMySQL returns the DDL for table, matching spec.md §4.6's
// schema exactly (column order, types, primary key). It's provided as a
// convenience for tests and migrations; Store itself never executes DDL.
func CreateTableMySQL(table string) string {
	return "CREATE TABLE " + table + ` (
  region VARCHAR(255) NOT NULL,
  ` + "`key`" + ` VARCHAR(255) NOT NULL,
  blob LONGBLOB,
  create_time TIMESTAMP NOT NULL,
  create_time_s BIGINT NOT NULL,
  max_life_s BIGINT NOT NULL,
  expire_time_s BIGINT NOT NULL,
  eternal CHAR(1) NOT NULL,
  PRIMARY KEY (region, ` + "`key`" + `)
)`
}
