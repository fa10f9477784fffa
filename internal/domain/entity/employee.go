package entity

import (
	"github.com/paysign/signoff/internal/schema"
	"github.com/paysign/signoff/internal/tablestore"
)

// Employee identifies a signed-in actor or a transfer candidate
type Employee struct {
	ID         string
	Name       string
	Email      string
	Department string
	// Password is the stored credential cell: a bcrypt hash for migrated
	// accounts, a legacy plaintext value otherwise.
	Password string
}

// NewEmployee parses an employee record through the schema map
func NewEmployee(record *tablestore.Record, fields schema.FieldMap) *Employee {
	return &Employee{
		ID:         record.ID,
		Name:       fields.ResolveString(record, "employeeName"),
		Email:      fields.ResolveString(record, "employeeEmail"),
		Department: fields.ResolveString(record, "employeeDepartment"),
		Password:   fields.ResolveString(record, "employeePassword"),
	}
}
