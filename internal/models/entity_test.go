package models

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestEntityKindInfo(t *testing.T) {
	info, ok := KindTeacher.Info()
	require.True(t, ok)
	require.Equal(t, "enrollments", info.Table)
	require.Equal(t, "enrollment_meta", info.MetaTable)
	require.Equal(t, RoleTeacher, info.RoleValue)

	info, ok = KindStudent.Info()
	require.True(t, ok)
	require.Equal(t, "enrollments", info.Table)
	require.Equal(t, RoleStudent, info.RoleValue)

	info, ok = KindError.Info()
	require.True(t, ok)
	require.Equal(t, "sync_errors", info.Table)
	require.Empty(t, info.MetaTable)

	_, ok = EntityKind("widget").Info()
	require.False(t, ok)
}

func TestKindsStableOrder(t *testing.T) {
	kinds := Kinds()
	require.Len(t, kinds, 8)
	require.Equal(t, Kinds(), kinds)
}

func TestMetadataCloneAndEqual(t *testing.T) {
	var nilMeta Metadata
	require.Nil(t, nilMeta.Clone())

	m := Metadata{"credit_hours": "3", "delivery": "online"}
	clone := m.Clone()
	require.True(t, m.Equal(clone))

	clone["delivery"] = "campus"
	require.False(t, m.Equal(clone))
	require.Equal(t, "online", m["delivery"])

	require.False(t, m.Equal(Metadata{"credit_hours": "3"}))
	require.True(t, Metadata{}.Equal(nil))
}
