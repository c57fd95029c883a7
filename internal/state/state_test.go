package state

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Plain(t *testing.T) {
	sys, err := Load(strings.NewReader(`{
		"/var/www/index.html": {"state": "present", "mode": "0644", "owner": "web"},
		"user:web": {"state": "present", "uid": 1001, "system": false, "shell": null}
	}`), "")
	require.NoError(t, err)

	assert.Equal(t, []string{"/var/www/index.html", "user:web"}, sys.Paths())
	assert.Equal(t, Record{"state": "present", "mode": "0644", "owner": "web"}, sys["/var/www/index.html"])
	assert.Equal(t, Record{"state": "present", "uid": "1001", "system": "false", "shell": Undefined}, sys[UserKey("web")])
}

func TestLoad_Selector(t *testing.T) {
	doc := `{"trace": {"pid": 42}, "snapshot": {"/etc/motd": {"state": "absent"}}}`
	sys, err := Load(strings.NewReader(doc), "$.snapshot")
	require.NoError(t, err)
	assert.Equal(t, System{"/etc/motd": {"state": "absent"}}, sys)

	_, err = Load(strings.NewReader(doc), "$.missing")
	assert.Error(t, err)
}

func TestLoad_Invalid(t *testing.T) {
	_, err := Load(strings.NewReader(`[1, 2]`), "")
	assert.Error(t, err)

	_, err = Load(strings.NewReader(`{"/x": "present"}`), "")
	assert.Error(t, err)

	_, err = Load(strings.NewReader(`{`), "")
	assert.Error(t, err)
}

func TestSystem_CloneEqualSet(t *testing.T) {
	sys := System{}
	sys.Set("/a", AttrState, Present)
	sys.Set("/a", AttrMode, "0600")

	clone := sys.Clone()
	assert.True(t, sys.Equal(clone))

	clone.Set("/a", AttrMode, "0644")
	assert.False(t, sys.Equal(clone))
	assert.Equal(t, "0600", sys["/a"][AttrMode])

	assert.Equal(t, "/a { mode=\"0600\", state=\"present\" }\n", sys.String())
}
