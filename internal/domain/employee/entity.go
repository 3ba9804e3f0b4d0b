package employee

type Employee struct {
	ID       int64
	FullName string
	Position *string
	Active   bool
}
