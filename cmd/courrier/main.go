package main

import (
	"fmt"
	"os"
	"strings"

	courrier "github.com/ouvrio/courrier"
	"github.com/ouvrio/courrier/template"

	"github.com/urfave/cli/v2"
)

func main() {
	app := &cli.App{
		Name:  "courrier",
		Usage: "a cli for poking a courrierd instance, dispatching test messages and reading diagnostics",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "api",
				EnvVars: []string{"COURRIER_API"},
				Value:   "http://localhost:8080",
				Usage:   "base url of the courrierd api",
			},
			&cli.StringFlag{
				Name:    "key",
				EnvVars: []string{"COURRIER_API_KEY"},
				Usage:   "operator api key",
			},
		},
		Commands: []*cli.Command{
			{
				Name:   "dispatch",
				Usage:  "render and dispatch a message through the service",
				Action: dispatch,
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "template", Required: true, Usage: "template id, eg contact_client"},
					&cli.StringFlag{Name: "to", Required: true, Usage: "recipient email"},
					&cli.StringFlag{Name: "ref", Usage: "source event reference, eg a request id"},
					&cli.StringSliceFlag{Name: "var", Usage: "template variable as name=value, repeatable"},
				},
			},
			{
				Name:   "diagnose",
				Usage:  "run the diagnostic pipeline against the saved mail config",
				Action: diagnose,
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "recipient", Usage: "when set, a fifth end-to-end stage sends a test message here"},
				},
			},
			{
				Name:   "history",
				Usage:  "list recent dispatch attempts",
				Action: history,
			},
		},
	}

	err := app.Run(os.Args)
	if err != nil {
		_, _ = fmt.Fprintln(os.Stderr, "got err", err)
		os.Exit(1)
	}
}

func client(c *cli.Context) *courrier.Client {
	return courrier.NewClient(c.String("key"), c.String("api"))
}

func dispatch(c *cli.Context) error {

	vars := template.Vars{}
	for _, kv := range c.StringSlice("var") {
		name, value, found := strings.Cut(kv, "=")
		if !found {
			return fmt.Errorf("variable %q is not on the form name=value", kv)
		}
		vars[name] = value
	}

	res, err := client(c).Dispatch(c.Context, courrier.DispatchRequest{
		TemplateId:     c.String("template"),
		Recipient:      c.String("to"),
		Variables:      vars,
		SourceEventRef: c.String("ref"),
	})
	if err != nil {
		return err
	}

	if res.Success {
		fmt.Println("sent", res.MessageId)
		return nil
	}
	fmt.Println("failed", res.MessageId, res.ErrorDetail)
	return nil
}

func diagnose(c *cli.Context) error {
	report, err := client(c).RunDiagnostics(c.Context, c.String("recipient"))
	if err != nil {
		return err
	}

	fmt.Println("overall:", report.Overall)
	for _, step := range report.Steps {
		status := "ok  "
		if !step.Success {
			status = "FAIL"
		}
		fmt.Printf("%s  %-20s %5dms  %s\n", status, step.StepName, step.DurationMs, step.Message)
		if step.ErrorDetail != "" {
			fmt.Printf("      %s\n", step.ErrorDetail)
		}
	}
	return nil
}

func history(c *cli.Context) error {
	records, err := client(c).History(c.Context)
	if err != nil {
		return err
	}

	for _, r := range records {
		fmt.Printf("%s  %-7s  %-18s  %-30s  %s\n",
			r.CreatedAt.Format("2006-01-02 15:04:05"), r.Status, r.TemplateId, r.Recipient, r.RenderedSubject)
		if r.ErrorDetail != "" {
			fmt.Printf("  err: %s\n", r.ErrorDetail)
		}
	}
	return nil
}
