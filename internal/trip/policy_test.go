package trip

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/winchzone/dashboard/internal/access"
)

func TestEditableMatrix(t *testing.T) {
	for _, f := range Fields {
		if f == FieldCollection {
			continue
		}
		assert.True(t, Editable(StatusPending, access.RoleUser, f), f)
		assert.True(t, Editable(StatusPending, access.RoleAdmin, f), f)
		assert.False(t, Editable(StatusApproved, access.RoleUser, f), f)
		assert.False(t, Editable(StatusApproved, access.RoleAdmin, f), f)
		assert.False(t, Editable(StatusPending, access.Role(""), f), f)
	}

	assert.True(t, Editable(StatusPending, access.RoleAdmin, FieldCollection))
	assert.True(t, Editable(StatusApproved, access.RoleAdmin, FieldCollection))
	assert.False(t, Editable(StatusPending, access.RoleUser, FieldCollection))
	assert.False(t, Editable(StatusApproved, access.RoleUser, FieldCollection))
}

func TestMutabilityApprovedForAdmin(t *testing.T) {
	m := Mutability(StatusApproved, access.RoleAdmin)
	assert.Len(t, m, len(Fields))
	for f, ok := range m {
		assert.Equal(t, f == FieldCollection, ok, f)
	}
}

func TestStatusApprove(t *testing.T) {
	next, changed := StatusPending.Approve()
	assert.Equal(t, StatusApproved, next)
	assert.True(t, changed)

	next, changed = StatusApproved.Approve()
	assert.Equal(t, StatusApproved, next)
	assert.False(t, changed)
}

func TestValidateEditPhotos(t *testing.T) {
	assert.NoError(t, ValidateEditPhotos(4, 0))
	assert.NoError(t, ValidateEditPhotos(0, 4))
	assert.NoError(t, ValidateEditPhotos(4, 4))
	for _, c := range [][2]int{{0, 0}, {1, 0}, {2, 4}, {4, 3}, {8, 0}} {
		assert.Error(t, ValidateEditPhotos(c[0], c[1]), c)
	}
}

func TestPhotoKey(t *testing.T) {
	assert.Equal(t, "trip_photos/42/dropoff_3_rear.png", PhotoKey(42, SideDropoff, 3, `C:\Users\me\rear.png`))
}

func TestSetPrice(t *testing.T) {
	var in RecordInput
	in.SetPrice("12,345")
	assert.Equal(t, 12345, in.Price)
	in.SetPrice("abc")
	assert.Equal(t, -1, in.Price)
}

func TestValidateFilter(t *testing.T) {
	assert.NoError(t, ValidateFilter(Filter{}))
	assert.NoError(t, ValidateFilter(Filter{From: "2026-01-01", To: "2026-01-31"}))
	assert.Error(t, ValidateFilter(Filter{From: "01/01/2026"}))
}
