package policy

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/repocerti-api/internal/models"
)

var (
	student    = models.Account{ID: "s1", Username: "sam", Role: models.RoleStudent}
	student2   = models.Account{ID: "s2", Username: "sue", Role: models.RoleStudent}
	hod        = models.Account{ID: "h1", Username: "hank", Role: models.RoleStaff, Designation: models.DesignationHOD}
	hod2       = models.Account{ID: "h2", Username: "hope", Role: models.RoleStaff, Designation: models.DesignationHOD}
	dean       = models.Account{ID: "d1", Username: "dora", Role: models.RoleStaff, Designation: models.DesignationDean}
	dean2      = models.Account{ID: "d2", Username: "dale", Role: models.RoleStaff, Designation: models.DesignationDean}
	principal  = models.Account{ID: "p1", Username: "pat", Role: models.RoleStaff, Designation: models.DesignationPrincipal}
	plainStaff = models.Account{ID: "x1", Username: "xena", Role: models.RoleStaff}
)

func recordOf(id string, owner models.Account) models.StoredRecord {
	return models.StoredRecord{
		ID:               id,
		OwnerID:          owner.ID,
		OwnerUsername:    owner.Username,
		OwnerRole:        owner.Role,
		OwnerDesignation: owner.Designation,
		Title:            "record " + id,
		Type:             models.RecordTypeReport,
	}
}

func fixture() []models.StoredRecord {
	return []models.StoredRecord{
		recordOf("r-s1", student),
		recordOf("r-h1", hod),
		recordOf("r-d1", dean),
		recordOf("r-p1", principal),
		recordOf("r-s2", student2),
		recordOf("r-x1", plainStaff),
		recordOf("r-h2", hod2),
		recordOf("r-d2", dean2),
	}
}

func ids(records []models.StoredRecord) []string {
	out := make([]string, 0, len(records))
	for _, r := range records {
		out = append(out, r.ID)
	}
	return out
}

func TestRecordsVisibleToByViewer(t *testing.T) {
	cases := []struct {
		name   string
		viewer models.Account
		want   []string
	}{
		{"student sees own only", student, []string{"r-s1"}},
		{"hod sees students and own", hod, []string{"r-s1", "r-h1", "r-s2"}},
		{"dean sees students hods and own", dean, []string{"r-s1", "r-h1", "r-d1", "r-s2", "r-h2"}},
		{"principal sees everything below", principal, []string{"r-s1", "r-h1", "r-d1", "r-p1", "r-s2", "r-h2", "r-d2"}},
		{"staff without designation sees own only", plainStaff, []string{"r-x1"}},
		{"unknown designation fails closed", models.Account{ID: "z", Role: models.RoleStaff, Designation: "registrar"}, []string{}},
		{"unknown role fails closed", models.Account{ID: "z", Role: "guest", Designation: models.DesignationPrincipal}, []string{}},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, ids(RecordsVisibleTo(tc.viewer, fixture())))
		})
	}
}

func TestStudentSeesExactlyOwnRecords(t *testing.T) {
	records := fixture()
	records = append(records, recordOf("r-s1-b", student))

	got := RecordsVisibleTo(student, records)
	require.Len(t, got, 2)
	for _, r := range got {
		assert.Equal(t, student.ID, r.OwnerID)
	}
}

func TestStudentWithDesignationStillRestricted(t *testing.T) {
	odd := models.Account{ID: "s9", Role: models.RoleStudent, Designation: models.DesignationPrincipal}
	assert.Empty(t, RecordsVisibleTo(odd, fixture()))
}

func TestOwnRecordsAlwaysVisible(t *testing.T) {
	viewers := []models.Account{student, student2, hod, hod2, dean, dean2, principal, plainStaff,
		{ID: "odd", Role: "visitor", Designation: "janitor"}}
	for _, viewer := range viewers {
		records := append(fixture(), recordOf("own-"+viewer.ID, viewer))
		got := RecordsVisibleTo(viewer, records)
		assert.Contains(t, ids(got), "own-"+viewer.ID, "viewer %s", viewer.ID)
	}
}

func TestVisibilityIsMonotonicInRank(t *testing.T) {
	records := fixture()
	// Separate the viewers from the owners so self-visibility does not skew the comparison.
	viewerHOD := models.Account{ID: "vh", Role: models.RoleStaff, Designation: models.DesignationHOD}
	viewerDean := models.Account{ID: "vd", Role: models.RoleStaff, Designation: models.DesignationDean}
	viewerPrincipal := models.Account{ID: "vp", Role: models.RoleStaff, Designation: models.DesignationPrincipal}

	hodSet := ids(RecordsVisibleTo(viewerHOD, records))
	deanSet := ids(RecordsVisibleTo(viewerDean, records))
	principalSet := ids(RecordsVisibleTo(viewerPrincipal, records))

	assert.Subset(t, deanSet, hodSet)
	assert.Subset(t, principalSet, deanSet)
	assert.NotContains(t, deanSet, "r-d1")
	assert.NotContains(t, principalSet, "r-p1")
}

func TestRecordsVisibleToIsIdempotentAndStable(t *testing.T) {
	records := fixture()
	first := RecordsVisibleTo(principal, records)
	second := RecordsVisibleTo(principal, records)
	assert.Equal(t, first, second)
	assert.Equal(t, fixture(), records, "input must not be mutated")
}

func TestRecordsVisibleToEmptyInput(t *testing.T) {
	got := RecordsVisibleTo(principal, nil)
	assert.NotNil(t, got)
	assert.Empty(t, got)
}

func TestHierarchyScenario(t *testing.T) {
	records := []models.StoredRecord{
		recordOf("S", student),
		recordOf("H", hod),
		recordOf("D", dean),
	}

	assert.Equal(t, []string{"S", "H", "D"}, ids(RecordsVisibleTo(principal, records)))
	assert.Equal(t, []string{"S", "H"}, ids(RecordsVisibleTo(dean2, records)))
	assert.Equal(t, []string{"S"}, ids(RecordsVisibleTo(hod2, records)))
	assert.Equal(t, []string{"S"}, ids(RecordsVisibleTo(student, records)))
}

func TestDecisionsUseOwnerSnapshot(t *testing.T) {
	// Saved while the owner was an HOD; the owner has since been promoted to dean.
	saved := recordOf("old", hod)
	promoted := hod
	promoted.Designation = models.DesignationDean

	assert.True(t, CanView(dean, saved), "dean still sees the record saved under the hod snapshot")
	assert.Equal(t, models.DesignationHOD, saved.OwnerDesignation)

	// A record saved after the promotion is evaluated against the new snapshot.
	fresh := recordOf("new", promoted)
	assert.False(t, CanView(dean, fresh))
	assert.True(t, CanView(principal, fresh))
}

func TestEmptyViewerIDDoesNotMatchOwnerless(t *testing.T) {
	anonymous := models.Account{Role: models.RoleStudent}
	orphan := models.StoredRecord{ID: "orphan", OwnerRole: models.RoleStudent}
	assert.False(t, CanView(anonymous, orphan))
}

func TestRank(t *testing.T) {
	assert.Equal(t, "student", Rank(student))
	assert.Equal(t, "hod", Rank(hod))
	assert.Equal(t, "dean", Rank(dean))
	assert.Equal(t, "principal", Rank(principal))
	assert.Equal(t, "staff", Rank(models.Account{ID: "x", Role: models.RoleStaff}))
	assert.Equal(t, "unknown", Rank(models.Account{ID: "y", Role: "visitor", Designation: models.DesignationPrincipal}))
}
