package wiki

import (
	"errors"
	"fmt"
	"strings"
	"unicode"
	"unicode/utf8"
)

// ErrInvalidTitle is returned for titles MediaWiki would reject.
var ErrInvalidTitle = errors.New("invalid title")

// TitleKey identifies a page by namespace and database title (underscores
// instead of spaces). It is comparable and used as a loader key.
type TitleKey struct {
	Namespace int
	Name      string
}

// NewTitleKey normalises name to database form.
func NewTitleKey(namespace int, name string) TitleKey {
	return TitleKey{Namespace: namespace, Name: strings.ReplaceAll(name, " ", "_")}
}

// Text returns the display form, e.g. "User talk:Example user".
func (t TitleKey) Text() string {
	name := strings.ReplaceAll(t.Name, "_", " ")
	prefix, ok := NamespaceName(t.Namespace)
	if !ok || prefix == "" {
		return name
	}
	return prefix + ":" + name
}

// Talk returns the talk page title for t.
func (t TitleKey) Talk() (TitleKey, bool) {
	ns, ok := TalkNamespace(t.Namespace)
	if !ok {
		return TitleKey{}, false
	}
	return TitleKey{Namespace: ns, Name: t.Name}, true
}

// Subject returns the content page title for t.
func (t TitleKey) Subject() TitleKey {
	return TitleKey{Namespace: SubjectNamespace(t.Namespace), Name: t.Name}
}

const illegalTitleChars = "#<>[]|{}"

// ParseTitle turns user input such as "user talk:foo_bar" into a TitleKey.
// A recognised namespace prefix selects the namespace; everything else is
// in the main namespace. The first letter is upper-cased.
func ParseTitle(text string) (TitleKey, error) {
	return ParseTitleIn(text, NSMain)
}

// ParseTitleIn is ParseTitle with a default namespace for unprefixed input.
func ParseTitleIn(text string, defaultNS int) (TitleKey, error) {
	name := strings.TrimSpace(strings.ReplaceAll(text, "_", " "))
	ns := defaultNS

	if strings.HasPrefix(name, ":") {
		name = strings.TrimSpace(name[1:])
		ns = NSMain
	}
	if prefix, rest, found := strings.Cut(name, ":"); found {
		if id, ok := LookupNamespace(prefix); ok {
			ns = id
			name = strings.TrimSpace(rest)
		}
	}

	name = collapseSpaces(name)
	if name == "" {
		return TitleKey{}, fmt.Errorf("%w: %q is empty", ErrInvalidTitle, text)
	}
	if strings.ContainsAny(name, illegalTitleChars) {
		return TitleKey{}, fmt.Errorf("%w: %q contains an illegal character", ErrInvalidTitle, text)
	}

	return NewTitleKey(ns, upperFirst(name)), nil
}

func upperFirst(s string) string {
	r, size := utf8.DecodeRuneInString(s)
	if r == utf8.RuneError || unicode.IsUpper(r) {
		return s
	}
	return string(unicode.ToUpper(r)) + s[size:]
}

func collapseSpaces(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

// NormalizeUserName puts a user name in the form stored in user.user_name:
// spaces instead of underscores, no repeated spaces, first letter upper-cased.
func NormalizeUserName(name string) string {
	return upperFirst(collapseSpaces(strings.ReplaceAll(name, "_", " ")))
}
