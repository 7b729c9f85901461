// Package addressfile reads the line-oriented address list.
//
// Each relevant line carries a chain marker followed by ": " and the address, for example
//
//	BTC address: 1BoatSLRHtKNngkdXEeobR76b53LETtpyT
//	ETH address: 0xde0B295669a9FD93d5F28D9Ec85E40f4cb697BAe
//
// Lines without a marker are ignored.
package addressfile

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"balscan/internal/domain"
)

const maxLineSize = 1 << 20

var markers = []struct {
	chain  domain.Chain
	marker string
}{
	{domain.ChainBTC, "BTC address"},
	{domain.ChainETH, "ETH address"},
}

type Source struct {
	path string
}

func NewSource(path string) (*Source, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("address file path is required")
	}
	return &Source{path: path}, nil
}

func (s *Source) Path() string {
	return s.path
}

// Load reads the file fresh on every call so addresses appended between cycles are picked up.
func (s *Source) Load(ctx context.Context) (domain.AddressBook, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	f, err := os.Open(s.path)
	if err != nil {
		return nil, fmt.Errorf("open address file: %w", err)
	}
	defer f.Close()

	book, err := Parse(f)
	if err != nil {
		return nil, fmt.Errorf("read address file %s: %w", s.path, err)
	}
	slog.Debug("addresses loaded", "path", s.path, "btc", len(book[domain.ChainBTC]), "eth", len(book[domain.ChainETH]))
	return book, nil
}

// Parse extracts marked addresses from r. Duplicates are kept; planning removes them.
func Parse(r io.Reader) (domain.AddressBook, error) {
	book := domain.AddressBook{}
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), maxLineSize)
	for scanner.Scan() {
		chain, addr, ok := parseLine(scanner.Text())
		if ok {
			book.Add(chain, addr)
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	return book, nil
}

func parseLine(line string) (domain.Chain, domain.Address, bool) {
	for _, m := range markers {
		idx := strings.Index(line, m.marker)
		if idx < 0 {
			continue
		}
		_, rest, found := strings.Cut(line[idx+len(m.marker):], ": ")
		if !found {
			return "", "", false
		}
		if next := strings.Index(rest, ": "); next >= 0 {
			rest = rest[:next]
		}
		addr := strings.TrimSpace(rest)
		if addr == "" {
			return "", "", false
		}
		return m.chain, domain.Address(addr), true
	}
	return "", "", false
}
