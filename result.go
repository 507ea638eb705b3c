package ppg

// Result is exec's outcome: the decimal affected-row count the server
// returned, decoded from exec's single-column single-row statement
// response.
type Result struct {
	rowsAffected int64
}

// RowsAffected returns the number of rows the exec statement affected.
func (r Result) RowsAffected() int64 {
	return r.rowsAffected
}
