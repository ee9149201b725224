/*
Package flinksql is a client for a SQL gateway that executes statements
asynchronously behind opaque session and operation handles.

A Client submits a statement, polls the resulting operation to a terminal
status, and then branches on what the statement was: results of reads are
paginated and loaded into an embedded DuckDB store for local inspection,
streaming writes are left running and reported with their job id, and
everything else is acknowledged as executed. Jobs started by reads against
unbounded sources never finish on their own, so the client names jobs up
front and stops them again in a best-effort cleanup step.

Basic usage:

	c, err := flinksql.Connect("localhost", 8083)
	if err != nil {
		log.Fatal(err)
	}
	defer c.Close()

	res, err := c.ExecuteRemote(ctx, "SELECT * FROM orders")
	if err != nil {
		log.Fatal(err)
	}
	fmt.Println(res) // loaded 42 rows into table result

	cols, rows, err := c.ExecuteLocal(ctx, "SELECT count(*) FROM result")

A Client is single-threaded: one statement lifecycle runs to completion
before the next starts, and a session handle must never be shared between
client instances.
*/
package flinksql
