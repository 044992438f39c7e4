package wiki

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseTitle(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  TitleKey
	}{
		{name: "main namespace", input: "main page", want: TitleKey{Namespace: NSMain, Name: "Main_page"}},
		{name: "underscores and spaces", input: "  Albert__Einstein ", want: TitleKey{Namespace: NSMain, Name: "Albert_Einstein"}},
		{name: "namespace prefix", input: "user talk:example", want: TitleKey{Namespace: NSUserTalk, Name: "Example"}},
		{name: "underscored prefix", input: "User_talk:Example", want: TitleKey{Namespace: NSUserTalk, Name: "Example"}},
		{name: "alias", input: "WP:Village pump", want: TitleKey{Namespace: NSProject, Name: "Village_pump"}},
		{name: "category", input: "Category:Physics", want: TitleKey{Namespace: NSCategory, Name: "Physics"}},
		{name: "unknown prefix stays in title", input: "Star Wars: Episode IV", want: TitleKey{Namespace: NSMain, Name: "Star_Wars:_Episode_IV"}},
		{name: "leading colon", input: ":Template:Cite web", want: TitleKey{Namespace: NSTemplate, Name: "Cite_web"}},
		{name: "unicode first letter", input: "éclair", want: TitleKey{Namespace: NSMain, Name: "Éclair"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseTitle(tt.input)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestParseTitleRejects(t *testing.T) {
	for _, input := range []string{"", "   ", "User:", "Foo[bar]", "A|B"} {
		_, err := ParseTitle(input)
		assert.ErrorIs(t, err, ErrInvalidTitle, "input %q", input)
	}
}

func TestParseTitleInDefaultNamespace(t *testing.T) {
	got, err := ParseTitleIn("Example", NSUser)
	require.NoError(t, err)
	assert.Equal(t, TitleKey{Namespace: NSUser, Name: "Example"}, got)
}

func TestTitleKeyText(t *testing.T) {
	assert.Equal(t, "Main Page", NewTitleKey(NSMain, "Main_Page").Text())
	assert.Equal(t, "User talk:Some user", NewTitleKey(NSUserTalk, "Some user").Text())
	assert.Equal(t, "Some_user", NewTitleKey(NSUserTalk, "Some user").Name)
}

func TestTalkAndSubject(t *testing.T) {
	article := NewTitleKey(NSMain, "Physics")
	talk, ok := article.Talk()
	require.True(t, ok)
	assert.Equal(t, TitleKey{Namespace: NSTalk, Name: "Physics"}, talk)
	assert.Equal(t, article, talk.Subject())

	again, ok := talk.Talk()
	require.True(t, ok)
	assert.Equal(t, talk, again)

	module := NewTitleKey(NSModule, "Citation")
	mt, ok := module.Talk()
	require.True(t, ok)
	assert.Equal(t, NSModuleTalk, mt.Namespace)

	_, ok = NewTitleKey(NSSpecial, "Random").Talk()
	assert.False(t, ok)
	assert.Equal(t, NSSpecial, NewTitleKey(NSSpecial, "Random").Subject().Namespace)
}

func TestNormalizeUserName(t *testing.T) {
	assert.Equal(t, "Jimbo Wales", NormalizeUserName("jimbo_wales"))
	assert.Equal(t, "Example user", NormalizeUserName("  example   user "))
	assert.Equal(t, "127.0.0.1", NormalizeUserName("127.0.0.1"))
}
