package writeback

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidate_ValidHCL(t *testing.T) {
	src := []byte(`resource "local_file" "motd" {
  filename        = "/etc/motd"
  content         = "hello"
  file_permission = "0644"
}
`)
	assert.NoError(t, Validate(src, "main.tf"))
}

func TestValidate_BrokenHCL(t *testing.T) {
	src := []byte(`resource "local_file" "motd" {
  filename = "/etc/motd"
  content  = 
`)
	err := Validate(src, "main.tf")
	require.Error(t, err)

	var ve *ValidationError
	require.ErrorAs(t, err, &ve)
	assert.Equal(t, "main.tf", ve.FilePath)
	assert.Contains(t, ve.Message, "syntax error")
}

func TestValidate_ValidYAML(t *testing.T) {
	src := []byte(`- hosts: all
  tasks:
    - name: index page
      file:
        path: /var/www/index.html
        mode: '0777'
`)
	assert.NoError(t, Validate(src, "site.yml"))
}

func TestValidate_BrokenYAML(t *testing.T) {
	src := []byte(`- hosts: all
  tasks:
    - file: {path: /a, mode: '0777'
`)
	require.Error(t, Validate(src, "site.yaml"))
}

func TestValidate_UnknownExtension_PassThrough(t *testing.T) {
	// Puppet manifests have no grammar and pass through
	src := []byte(`file { '/a': mode => {{{`)
	assert.NoError(t, Validate(src, "site.pp"))
}

func TestValidate_EmptyContent(t *testing.T) {
	assert.NoError(t, Validate([]byte{}, "main.tf"))
}

func TestASTErrors_BrokenHCL(t *testing.T) {
	src := []byte(`resource "local_file" "motd" {
  content = "a" "b"
}
`)
	errs := ASTErrors(src, "main.tf")
	require.NotEmpty(t, errs)
	assert.Equal(t, "main.tf", errs[0].FilePath)
}

func TestASTErrors_ValidHCL_ReturnsNil(t *testing.T) {
	errs := ASTErrors([]byte("locals {\n  owner = \"root\"\n}\n"), "main.tf")
	assert.Nil(t, errs)
}

func TestASTErrors_UnknownExtension_ReturnsNil(t *testing.T) {
	errs := ASTErrors([]byte(`broken {{{`), "site.pp")
	assert.Nil(t, errs)
}

func TestValidate_ReportsFirstASTError(t *testing.T) {
	src := []byte("locals {\n  a = \"x\" \"y\"\n}\n")
	errs := ASTErrors(src, "main.tf")
	require.NotEmpty(t, errs)

	var ve *ValidationError
	require.ErrorAs(t, Validate(src, "main.tf"), &ve)
	assert.Equal(t, errs[0], *ve)
}
