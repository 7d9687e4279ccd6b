package bind

import (
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	p := filepath.Join(dir, name)
	require.NoError(t, os.MkdirAll(filepath.Dir(p), 0o755))
	require.NoError(t, os.WriteFile(p, []byte(content), 0o644))
	return p
}

func TestSourceResolver(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "models.go", `package app

import "time"

type Base struct {
	ID      int
	Created time.Time
}

type User struct {
	Base
	Name    string
	Email   string `+"`json:\"email_address\"`"+`
	Zip     string `+"`form:\"postcode\" json:\"zip\"`"+`
	Secret  string `+"`form:\"-\"`"+`
	Address *Address
	private string
}

type Address struct {
	Street string
	City   string
}

type Admin User
`)
	writeFile(t, dir, "models_test.go", `package app

type TestOnly struct{ X int }
`)

	r := NewSourceResolver(dir, nil)

	st, err := r.Resolve("User")
	require.NoError(t, err)
	assert.Equal(t, "User", st.Name)
	assert.Equal(t, []string{
		"address", "address.city", "address.street", "created", "email_address", "id", "name", "postcode",
	}, st.Paths())
	assert.NoError(t, st.Lookup("Email"))
	assert.NoError(t, st.Lookup("email_address"))
	assert.Error(t, st.Lookup("secret"))
	assert.Error(t, st.Lookup("private"))

	admin, err := r.Resolve("*Admin")
	require.NoError(t, err)
	assert.NoError(t, admin.Lookup("address.city"))

	_, err = r.Resolve("TestOnly")
	assert.Error(t, err)

	_, err = r.Resolve("Missing")
	var te *TypeError
	require.ErrorAs(t, err, &te)
	assert.Equal(t, "Missing", te.Expr)
}

func TestSourceResolverSelfReference(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "tree.go", `package app

type Node struct {
	Label  string
	Parent *Node
}
`)
	st, err := NewSourceResolver(dir, nil).Resolve("Node")
	require.NoError(t, err)
	assert.NoError(t, st.Lookup("parent.parent.label"))
}

func TestSourceResolverKilnFiles(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "page.kiln", `package app

type Signup struct {
	Email string
}

func Page() templ.Component {
	return html!{ <form bind={Signup}><input name="email"/></form> }
}
`)
	// A stale generated file must not shadow the .kiln source.
	writeFile(t, dir, "page_kiln.go", `package app

type Signup struct {
	Old string
}
`)

	st, err := NewSourceResolver(dir, nil).Resolve("Signup")
	require.NoError(t, err)
	assert.NoError(t, st.Lookup("email"))
	assert.Error(t, st.Lookup("old"))
}

func TestSourceResolverOverlay(t *testing.T) {
	dir := t.TempDir()
	overlay := map[string][]byte{
		filepath.Join(dir, "form.kiln"): []byte("package app\n\ntype Login struct{ User, Pass string }\n"),
	}
	st, err := NewSourceResolver(dir, nil, WithOverlay(overlay)).Resolve("Login")
	require.NoError(t, err)
	assert.Equal(t, []string{"pass", "user"}, st.Paths())
}

func TestSourceResolverImportedPackage(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "models/user.go", `package models

type User struct {
	Name string
}
`)
	app := filepath.Join(root, "app")
	require.NoError(t, os.MkdirAll(app, 0o755))

	locate := func(fromDir, importPath string) (string, error) {
		if importPath == "example.com/shop/models" {
			return filepath.Join(root, "models"), nil
		}
		return "", fmt.Errorf("unexpected import %s", importPath)
	}
	r := NewSourceResolver(app, map[string]string{"models": "example.com/shop/models"}, WithLocator(locate))

	st, err := r.Resolve("models.User")
	require.NoError(t, err)
	assert.NoError(t, st.Lookup("name"))

	_, err = r.Resolve("views.User")
	assert.Error(t, err)
}

func TestSourceResolverRejectsNonStruct(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "ids.go", "package app\n\ntype ID string\n")

	_, err := NewSourceResolver(dir, nil).Resolve("ID")
	assert.Error(t, err)

	_, err = NewSourceResolver(dir, nil).Resolve("[]int{")
	assert.Error(t, err)
}
