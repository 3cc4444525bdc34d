// Package policy decides which stored records a viewer may see.
//
// Visibility follows the rank order student < hod < dean < principal and only
// flows downward. Decisions read the owner snapshot captured on each record at
// save time, so a later designation change never alters who can see records
// saved before it. Unknown roles or designations grant nothing beyond the
// viewer's own records.
package policy

import "github.com/noah-isme/repocerti-api/internal/models"

// RecordsVisibleTo returns the records viewer may see, preserving input order.
// The result is never nil.
func RecordsVisibleTo(viewer models.Account, records []models.StoredRecord) []models.StoredRecord {
	visible := make([]models.StoredRecord, 0, len(records))
	for _, record := range records {
		if CanView(viewer, record) {
			visible = append(visible, record)
		}
	}
	return visible
}

// CanView reports whether viewer may see record.
func CanView(viewer models.Account, record models.StoredRecord) bool {
	if viewer.ID != "" && record.OwnerID == viewer.ID {
		return true
	}
	if viewer.Role != models.RoleStaff {
		return false
	}

	ownerIsStudent := record.OwnerRole == models.RoleStudent
	switch viewer.Designation {
	case models.DesignationPrincipal:
		return ownerIsStudent ||
			record.OwnerDesignation == models.DesignationDean ||
			record.OwnerDesignation == models.DesignationHOD
	case models.DesignationDean:
		return ownerIsStudent || record.OwnerDesignation == models.DesignationHOD
	case models.DesignationHOD:
		return ownerIsStudent
	default:
		// Staff without a designation see only their own records.
		return false
	}
}

// Rank names the viewer's position in the hierarchy for logs and metrics.
// Staff without a recognised designation report as "staff".
func Rank(viewer models.Account) string {
	switch viewer.Role {
	case models.RoleStudent:
		return string(models.RoleStudent)
	case models.RoleStaff:
	default:
		return "unknown"
	}
	switch viewer.Designation {
	case models.DesignationHOD, models.DesignationDean, models.DesignationPrincipal:
		return string(viewer.Designation)
	default:
		return string(models.RoleStaff)
	}
}
