package exam

import (
	"io"
	"os"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"

	appfs "github.com/trezcool/examhall/fs"
)

var defaultTextsFile = "texts/labels.yaml"

// Label positions of the exam page.
const (
	LabelProblem = iota + 1
	LabelSubmit
	LabelAnswerLanguage
	LabelLink
	LabelUpload
	LabelTimeRemaining
	LabelExamOver
	LabelSubmissions
)

// Texts resolves numbered labels per locale.
type Texts struct {
	table map[int]map[string]string // {position: {locale: text}}
}

func ParseTexts(r io.Reader) (*Texts, error) {
	table := make(map[int]map[string]string)
	if err := yaml.NewDecoder(r).Decode(&table); err != nil && err != io.EOF {
		return nil, errors.Wrap(err, "decoding texts")
	}
	return &Texts{table: table}, nil
}

// LoadTexts reads the label table from path, or the embedded one when path is empty.
func LoadTexts(path string) (*Texts, error) {
	var (
		f   io.ReadCloser
		err error
	)
	if path == "" {
		f, err = appfs.FS.Open(defaultTextsFile)
	} else {
		f, err = os.Open(path)
	}
	if err != nil {
		return nil, errors.Wrapf(err, "opening texts %q", path)
	}
	defer func() { _ = f.Close() }()
	return ParseTexts(f)
}

// Text returns the label at position in locale, the english one if the locale has none, or "".
func (t *Texts) Text(position int, locale string) string {
	texts, ok := t.table[position]
	if !ok {
		return ""
	}
	if s, ok := texts[locale]; ok {
		return s
	}
	return texts[DefaultLocale]
}

// Labels returns every label of the table in locale.
func (t *Texts) Labels(locale string) map[int]string {
	labels := make(map[int]string, len(t.table))
	for pos := range t.table {
		labels[pos] = t.Text(pos, locale)
	}
	return labels
}
