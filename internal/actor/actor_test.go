package actor

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseRoleNormalizes(t *testing.T) {
	cases := map[string]Role{
		"patient":    RolePatient,
		"Doctor":     RoleDoctor,
		" PHARMACY ": RolePharmacy,
	}
	for in, want := range cases {
		got, err := ParseRole(in)
		require.NoError(t, err, "input %q", in)
		assert.Equal(t, want, got)
	}
}

func TestParseRoleRejectsUnknown(t *testing.T) {
	for _, in := range []string{"", "admin", "nurse", "patients"} {
		_, err := ParseRole(in)
		assert.Error(t, err, "input %q", in)
	}
}

func TestRolePredicates(t *testing.T) {
	a := Actor{ID: uuid.New(), Role: RoleDoctor}
	assert.True(t, a.IsDoctor())
	assert.False(t, a.IsPatient())
	assert.False(t, a.IsPharmacy())
}
