package participant

import (
	"encoding/csv"
	"io"
	"strings"

	"github.com/pkg/errors"
)

var (
	importHeader = []string{"nickname", "email", "preferred_lang"}
	linksHeader  = []string{"nickname", "email", "url"}
)

// ReadCSV reads "nickname,email,preferred_lang" rows. A header row is skipped;
// the email and language columns are optional.
func ReadCSV(r io.Reader) ([]NewParticipant, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.TrimLeadingSpace = true

	var nps []NewParticipant
	for line := 1; ; line++ {
		record, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, errors.Wrapf(err, "reading line %d", line)
		}
		if line == 1 && strings.EqualFold(strings.TrimSpace(record[0]), importHeader[0]) {
			continue
		}
		if len(record) == 1 && strings.TrimSpace(record[0]) == "" {
			continue
		}

		var np NewParticipant
		np.Nickname = record[0]
		if len(record) > 1 {
			np.Email = record[1]
		}
		if len(record) > 2 {
			np.PreferredLang = record[2]
		}
		nps = append(nps, np)
	}
	return nps, nil
}

// WriteLinksCSV writes the access links with a header row.
func WriteLinksCSV(w io.Writer, links []AccessLink) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(linksHeader); err != nil {
		return errors.Wrap(err, "writing header")
	}
	for _, l := range links {
		if err := cw.Write([]string{l.Nickname, l.Email, l.URL}); err != nil {
			return errors.Wrap(err, "writing link")
		}
	}
	cw.Flush()
	return errors.Wrap(cw.Error(), "flushing links")
}
