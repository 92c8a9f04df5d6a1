package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/johnayoung/solana-candle-scraper/internal/models"
)

var errAddressRequired = errors.New("token address required")

type lineResult struct {
	text string
	err  error
}

// prompter asks questions on out and reads answers from in. Reads happen on
// a background goroutine so a pending prompt still observes cancellation.
type prompter struct {
	in    *bufio.Reader
	out   io.Writer
	lines chan lineResult
}

func newPrompter(in io.Reader, out io.Writer) *prompter {
	return &prompter{in: bufio.NewReader(in), out: out}
}

// ask prints question and returns the trimmed answer. EOF after a partial
// line returns that line; EOF on an empty line returns io.EOF, as does every
// ask after the input is exhausted.
func (p *prompter) ask(ctx context.Context, question string) (string, error) {
	fmt.Fprint(p.out, question)

	if p.lines == nil {
		p.lines = make(chan lineResult)
		go p.readLoop()
	}

	select {
	case <-ctx.Done():
		return "", ctx.Err()
	case line, ok := <-p.lines:
		if !ok {
			return "", io.EOF
		}
		return strings.TrimSpace(line.text), line.err
	}
}

// readLoop closes lines once it has delivered the terminal read error.
func (p *prompter) readLoop() {
	defer close(p.lines)
	for {
		text, err := p.in.ReadString('\n')
		if err == io.EOF && text != "" {
			err = nil
		}
		p.lines <- lineResult{text: text, err: err}
		if err != nil {
			return
		}
	}
}

// TokenAddress asks for the token mint address, which is required.
func (p *prompter) TokenAddress(ctx context.Context) (string, error) {
	token, err := p.ask(ctx, "Enter Token Address: ")
	if err != nil && !errors.Is(err, io.EOF) {
		return "", err
	}
	if token == "" {
		return "", errAddressRequired
	}
	return token, nil
}

// Timeframe lists the supported codes and asks for one. An empty answer or
// end of input selects def.
func (p *prompter) Timeframe(ctx context.Context, def string) (string, error) {
	fmt.Fprintf(p.out, "Timeframes: %s\n", strings.Join(models.SupportedTimeframes(), ", "))

	answer, err := p.ask(ctx, fmt.Sprintf("Enter Timeframe (default %s): ", def))
	if err != nil && !errors.Is(err, io.EOF) {
		return "", err
	}
	if answer == "" {
		return def, nil
	}
	return strings.ToLower(answer), nil
}

// ChoosePair implements collector.PairChooser.
func (p *prompter) ChoosePair(ctx context.Context, candidates []models.TradingPair, total int) (string, error) {
	if total > len(candidates) {
		fmt.Fprintf(p.out, "\nFound %d pairs, showing top %d:\n", total, len(candidates))
	} else {
		fmt.Fprintf(p.out, "\nFound %d pairs:\n", total)
	}
	for i, pair := range candidates {
		fmt.Fprintf(p.out, "%d. %s\n", i+1, pair.String())
	}
	return p.ask(ctx, "Choose pair number (default 1): ")
}
