package support

import (
	"fmt"

	"github.com/cucumber/godog"
)

// RegisterSteps wires every Given/When/Then phrase used by the
// .feature files in this directory against a fresh World.
func RegisterSteps(sc *godog.ScenarioContext, w *World, outDir func() string) {
	sc.Step(`^a page image (\d+)x(\d+) with a vertical separator at x=(\d+)$`, w.stepPageWithSeparator)
	sc.Step(`^a single-column page image (\d+)x(\d+)$`, w.stepBlankPage)
	sc.Step(`^the local engine finds problems ([\d, ]+) in column (\d+)$`, w.stepLocalFinds)
	sc.Step(`^the expected problem count is (\d+)$`, w.stepExpectedCount)
	sc.Step(`^the remote engine reports problem (\d+) at remote coordinates \((\d+), (\d+), (\d+), (\d+)\) in a (\d+)x(\d+) page$`, w.stepRemoteFinds)
	sc.Step(`^remote credentials are configured$`, w.stepCredsConfigured)
	sc.Step(`^the remote engine is unavailable$`, w.stepRemoteUnavailable)
	sc.Step(`^the job is processed$`, func() error { return w.Process(outDir()) })
	sc.Step(`^the job status is "([^"]+)"$`, w.stepJobStatus)
	sc.Step(`^column (\d+) lists problems ([\d, ]+) all sourced from "([^"]+)"$`, w.stepColumnListsAllSourced)
	sc.Step(`^column (\d+) lists problems ([\d, ]+)$`, w.stepColumnLists)
	sc.Step(`^column (\d+) is missing problem (\d+)$`, w.stepColumnMissingOne)
	sc.Step(`^column (\d+) is missing problems ([\d, ]+)$`, w.stepColumnMissingMany)
	sc.Step(`^problem (\d+) in column (\d+) is sourced from "([^"]+)"$`, w.stepProblemSourced)
	sc.Step(`^the remote engine was never called$`, w.stepRemoteNeverCalled)
	sc.Step(`^the remote engine was called exactly once for column (\d+)$`, w.stepRemoteCalledOnce)
	sc.Step(`^the exit code is (\d+)$`, w.stepExitCode)
}

func (w *World) stepPageWithSeparator(width, height, x int) error {
	w.SetPageWithSeparator(width, height, x)
	return nil
}

func (w *World) stepBlankPage(width, height int) error {
	w.SetBlankPage(width, height)
	return nil
}

func (w *World) stepLocalFinds(list string, col int) error {
	numbers, err := ParseIntList(list)
	if err != nil {
		return err
	}
	w.AddLocalFinds(col, numbers)
	return nil
}

func (w *World) stepExpectedCount(n int) error {
	w.SetExpectedCount(n)
	return nil
}

func (w *World) stepRemoteFinds(n, x, y, bw, bh, pageW, pageH int) error {
	w.SetRemoteFinds(n, x, y, bw, bh, pageW, pageH)
	return nil
}

func (w *World) stepCredsConfigured() error {
	w.SetRemoteCredentialsConfigured()
	return nil
}

func (w *World) stepRemoteUnavailable() error {
	w.SetRemoteUnavailable()
	return nil
}

func (w *World) stepJobStatus(status string) error {
	m := w.Manifest()
	if m == nil {
		return fmt.Errorf("no manifest produced (run error: %v)", w.runErr)
	}
	if string(m.Status) != status {
		return fmt.Errorf("expected status %q, got %q", status, m.Status)
	}
	return nil
}

func (w *World) stepColumnListsAllSourced(col int, list, source string) error {
	numbers, err := ParseIntList(list)
	if err != nil {
		return err
	}
	c, err := w.Column(col)
	if err != nil {
		return err
	}
	if len(c.Problems) != len(numbers) {
		return fmt.Errorf("column %d: expected %d problems, got %d (%v)", col, len(numbers), len(c.Problems), c.Problems)
	}
	for i, n := range numbers {
		p := c.Problems[i]
		if p.Number != n {
			return fmt.Errorf("column %d: expected problem %d at index %d, got %d", col, n, i, p.Number)
		}
		if string(p.Source) != source {
			return fmt.Errorf("problem %d: expected source %q, got %q", n, source, p.Source)
		}
	}
	return nil
}

func (w *World) stepColumnLists(col int, list string) error {
	numbers, err := ParseIntList(list)
	if err != nil {
		return err
	}
	c, err := w.Column(col)
	if err != nil {
		return err
	}
	if len(c.Problems) != len(numbers) {
		return fmt.Errorf("column %d: expected %d problems, got %d (%v)", col, len(numbers), len(c.Problems), c.Problems)
	}
	for i, n := range numbers {
		if c.Problems[i].Number != n {
			return fmt.Errorf("column %d: expected problem %d at index %d, got %d", col, n, i, c.Problems[i].Number)
		}
	}
	return nil
}

func (w *World) stepColumnMissingOne(col, n int) error {
	return w.stepColumnMissingMany(col, fmt.Sprintf("%d", n))
}

func (w *World) stepColumnMissingMany(col int, list string) error {
	numbers, err := ParseIntList(list)
	if err != nil {
		return err
	}
	c, err := w.Column(col)
	if err != nil {
		return err
	}
	if len(c.Missing) != len(numbers) {
		return fmt.Errorf("column %d: expected %d missing, got %d (%v)", col, len(numbers), len(c.Missing), c.Missing)
	}
	for i, n := range numbers {
		if c.Missing[i] != n {
			return fmt.Errorf("column %d: expected missing %d at index %d, got %d", col, n, i, c.Missing[i])
		}
	}
	return nil
}

func (w *World) stepProblemSourced(n, col int, source string) error {
	c, err := w.Column(col)
	if err != nil {
		return err
	}
	for _, p := range c.Problems {
		if p.Number == n {
			if string(p.Source) != source {
				return fmt.Errorf("problem %d: expected source %q, got %q", n, source, p.Source)
			}
			return nil
		}
	}
	return fmt.Errorf("column %d: problem %d not found among %v", col, n, c.Problems)
}

func (w *World) stepRemoteNeverCalled() error {
	if n := w.RemoteCallCount(); n != 0 {
		return fmt.Errorf("expected remote engine never called, got %d calls", n)
	}
	return nil
}

func (w *World) stepRemoteCalledOnce(_ int) error {
	if n := w.RemoteCallCount(); n != 1 {
		return fmt.Errorf("expected remote engine called exactly once, got %d calls", n)
	}
	return nil
}

func (w *World) stepExitCode(code int) error {
	m := w.Manifest()
	if m == nil {
		return fmt.Errorf("no manifest produced (run error: %v)", w.runErr)
	}
	if m.Status.ExitCode() != code {
		return fmt.Errorf("expected exit code %d, got %d", code, m.Status.ExitCode())
	}
	return nil
}
