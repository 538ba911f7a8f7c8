package models

// TableStatus is the raw status vocabulary stored by the backend.
type TableStatus string

const (
	TableStatusFree     TableStatus = "FREE"
	TableStatusOccupied TableStatus = "OCCUPIED"
	TableStatusInactive TableStatus = "INACTIVE"
)

type Table struct {
	ID       string      `json:"id"`
	Tag      string      `json:"tag"`
	Capacity int         `json:"capacity"`
	Status   TableStatus `json:"status"`
	AreaID   *string     `json:"areaId"`
	AreaName string      `json:"areaName,omitempty"`
	BranchID string      `json:"branchId"`
}

// InArea reports whether the table is assigned to areaID.
func (t Table) InArea(areaID string) bool {
	return t.AreaID != nil && *t.AreaID == areaID
}

type Area struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	BranchID string `json:"branchId"`
}

// TablePage is one page of the paginated table list.
type TablePage struct {
	Items []Table `json:"items"`
	Page  int     `json:"page"`
	Limit int     `json:"limit"`
	Total int     `json:"total"`
}

// TableEdit carries the fields an operator may change on a table. Nil
// fields are left untouched; ClearArea moves the table to no area.
type TableEdit struct {
	Capacity  *int         `json:"capacity,omitempty"`
	Status    *TableStatus `json:"status,omitempty"`
	AreaID    *string      `json:"areaId,omitempty"`
	ClearArea bool         `json:"clearArea,omitempty"`
}

func (e TableEdit) Empty() bool {
	return e.Capacity == nil && e.Status == nil && e.AreaID == nil && !e.ClearArea
}
