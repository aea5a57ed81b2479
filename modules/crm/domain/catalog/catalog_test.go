package catalog

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestDefault_EmbeddedDefinitionsParse(t *testing.T) {
	c := Default()
	require.ElementsMatch(t,
		[]string{"contacts", "accounts", "leads", "opportunities", "activities"},
		c.Names(),
	)

	for _, entity := range c.Entities() {
		require.NotEmpty(t, entity.DisplayFields, "entity %s needs a search surface", entity.Name)
		require.NotEmpty(t, entity.FacetField, "entity %s needs a facet field", entity.Name)
		require.NotEmpty(t, entity.DefaultSort, "entity %s needs a default sort", entity.Name)
	}
}

func TestDefault_ContactsShape(t *testing.T) {
	contacts, err := Default().Get("contacts")
	require.NoError(t, err)

	require.True(t, contacts.HasLinking())
	require.Equal(t, []string{"first_name", "last_name"}, contacts.RequiredFields())

	email, ok := contacts.Field("email")
	require.True(t, ok)
	require.Equal(t, KindEmail, email.Kind)

	phone, ok := contacts.Field("phone")
	require.True(t, ok)
	require.Equal(t, KindPhone, phone.Kind)
}

func TestCatalog_GetUnknown(t *testing.T) {
	_, err := Default().Get("invoices")
	require.ErrorIs(t, err, ErrUnknownEntity)
}

func TestNormalizeHeader(t *testing.T) {
	cases := []struct {
		in   string
		want string
	}{
		{"First Name", "first name"},
		{"  first_name  ", "first name"},
		{"FIRST-NAME", "first name"},
		{"first   name", "first name"},
		{"Email\tAddress", "email address"},
		{"", ""},
		{"___", ""},
	}
	for _, tc := range cases {
		t.Run(tc.in, func(t *testing.T) {
			require.Equal(t, tc.want, NormalizeHeader(tc.in))
		})
	}
}

func TestEntity_SynonymIndex(t *testing.T) {
	contacts, err := Default().Get("contacts")
	require.NoError(t, err)

	index := contacts.SynonymIndex()
	require.Equal(t, "first_name", index["first name"])
	require.Equal(t, "first_name", index["fname"])
	require.Equal(t, "email", index["email"])
	require.Equal(t, "email", index["e mail"])
	require.Equal(t, "phone", index["phone number"])
}

func TestEntity_SynonymIndex_FirstClaimWins(t *testing.T) {
	entity := Entity{
		Name: "things",
		Fields: []Field{
			{Name: "alpha", Kind: KindText, Synonyms: []string{"shared"}},
			{Name: "beta", Kind: KindText, Synonyms: []string{"shared"}},
		},
	}
	require.Equal(t, "alpha", entity.SynonymIndex()["shared"])
}

func TestEntity_IsLinkingHeader(t *testing.T) {
	contacts, err := Default().Get("contacts")
	require.NoError(t, err)

	require.True(t, contacts.IsLinkingHeader("Company"))
	require.True(t, contacts.IsLinkingHeader("ACCOUNT_NAME"))
	require.False(t, contacts.IsLinkingHeader("first name"))

	leads, err := Default().Get("leads")
	require.NoError(t, err)
	require.False(t, leads.HasLinking())
	require.False(t, leads.IsLinkingHeader("company"))
}

func TestParse_RejectsBadDefinitions(t *testing.T) {
	cases := []struct {
		name string
		yaml string
	}{
		{"no entities", "entities: []"},
		{"duplicate entity", `
entities:
  - name: a
    fields: [{name: x, kind: text}]
  - name: a
    fields: [{name: x, kind: text}]
`},
		{"unknown kind", `
entities:
  - name: a
    fields: [{name: x, kind: numeric}]
`},
		{"select without options", `
entities:
  - name: a
    fields: [{name: x, kind: select}]
`},
		{"undeclared display field", `
entities:
  - name: a
    display_fields: [missing]
    fields: [{name: x, kind: text}]
`},
		{"undeclared facet field", `
entities:
  - name: a
    facet_field: missing
    fields: [{name: x, kind: text}]
`},
		{"undeclared sort field", `
entities:
  - name: a
    default_sort: -missing
    fields: [{name: x, kind: text}]
`},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := Parse([]byte(tc.yaml))
			require.Error(t, err)
		})
	}
}

func TestParse_MetaSortAllowed(t *testing.T) {
	c, err := Parse([]byte(`
entities:
  - name: a
    default_sort: -created_at
    fields: [{name: x, kind: text}]
`))
	require.NoError(t, err)
	require.True(t, c.Has("a"))
}
