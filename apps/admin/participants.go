package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/pkg/errors"

	"github.com/trezcool/examhall/core/participant"
)

func (cli *commandLine) importParticipants(path string) error {
	f, err := os.Open(path)
	if err != nil {
		return errors.Wrap(err, "opening file")
	}
	defer func() { _ = f.Close() }()

	nps, err := participant.ReadCSV(f)
	if err != nil {
		return err
	}
	participants, err := cli.participantSvc.Import(context.Background(), nps)
	if err != nil {
		return err
	}
	fmt.Fprintf(cli.out, "%d participants imported\n", len(participants))
	return nil
}

func (cli *commandLine) exportLinks(format string) error {
	links, err := cli.participantSvc.ExportAccessLinks(context.Background())
	if err != nil {
		return err
	}
	switch format {
	case "csv":
		return participant.WriteLinksCSV(cli.out, links)
	case "json":
		enc := json.NewEncoder(cli.out)
		enc.SetIndent("", "  ")
		return enc.Encode(links)
	default:
		return errors.Errorf("unknown format %q", format)
	}
}

func (cli *commandLine) sendLinks() error {
	res, err := cli.participantSvc.SendAccessLinks(context.Background())
	if err != nil {
		return err
	}
	fmt.Fprintf(cli.out, "%d access links sent, %d failed\n", res.Sent, res.Failed)
	if res.Failed > 0 {
		return errors.Errorf("%d access links could not be sent", res.Failed)
	}
	return nil
}
