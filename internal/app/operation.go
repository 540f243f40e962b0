package app

// Operation tracks a CLI command that may mutate the catalog. It lives in
// memory with ID=0 until the command first writes, at which point it is
// recorded in the scan_operations table.
type Operation struct {
	ID         int64
	Name       string
	Parameters string
	Status     string // "success" or "error"
}

// NewOperation creates an unrecorded operation.
func NewOperation(name, parameters string) *Operation {
	return &Operation{Name: name, Parameters: parameters, Status: "success"}
}

// Persisted reports whether the operation has a catalog row.
func (op *Operation) Persisted() bool {
	return op.ID != 0
}

// Fail marks the operation as failed when err is non-nil and returns err.
func (op *Operation) Fail(err error) error {
	if err != nil {
		op.Status = "error"
	}
	return err
}
