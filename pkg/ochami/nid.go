package ochami

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"

	"git.cscs.ch/openchami/chamicore-connect/pkg/backend"
	"git.cscs.ch/openchami/chamicore-connect/pkg/hostlist"
	"git.cscs.ch/openchami/chamicore-connect/pkg/types"
)

// NIDToXName resolves user NID input to xnames. Input is either a
// comma-separated list of regexes (isRegex) matched against the canonical
// "nid%06d" form, or a NID list / hostlist expression such as
// "nid0000[01-15]".
func (b *Backend) NIDToXName(ctx context.Context, input string, isRegex bool) ([]string, error) {
	const op = "components.nid-to-xname"

	input = strings.TrimSpace(input)
	if input == "" {
		return nil, &backend.Error{Kind: backend.KindInvalidArgument, Op: op, Detail: "NID input is empty"}
	}

	if isRegex {
		return b.nidToXNameRegex(ctx, op, input)
	}
	return b.nidToXNameList(ctx, op, input)
}

func (b *Backend) nidToXNameRegex(ctx context.Context, op, input string) ([]string, error) {
	var patterns []*regexp.Regexp
	for _, expr := range strings.Split(input, ",") {
		pattern, err := regexp.Compile(strings.TrimSpace(expr))
		if err != nil {
			return nil, &backend.Error{Kind: backend.KindInvalidArgument, Op: op, Detail: fmt.Sprintf("invalid regex %q", expr), Err: err}
		}
		patterns = append(patterns, pattern)
	}

	components, err := b.ListComponents(ctx, types.ComponentFilter{Type: "Node"})
	if err != nil {
		return nil, err
	}

	var xnames []string
	for _, component := range components {
		if component.NID == nil || component.ID == "" {
			continue
		}
		nidLong := fmt.Sprintf("nid%06d", *component.NID)
		for _, pattern := range patterns {
			if pattern.MatchString(nidLong) {
				b.logger.Debug().Str("nid", nidLong).Str("regex", pattern.String()).Msg("NID matched regex")
				xnames = append(xnames, component.ID)
				break
			}
		}
	}
	return xnames, nil
}

func (b *Backend) nidToXNameList(ctx context.Context, op, input string) ([]string, error) {
	expanded, err := hostlist.Expand(input)
	if err != nil {
		var parseErr *hostlist.ParseError
		if errors.As(err, &parseErr) {
			return nil, &backend.Error{Kind: backend.KindParse, Op: op, Detail: parseErr.Error(), Err: err}
		}
		return nil, &backend.Error{Kind: backend.KindParse, Op: op, Detail: err.Error(), Err: err}
	}

	nids := make([]string, 0, len(expanded))
	for _, nidLong := range expanded {
		short, ok := strings.CutPrefix(nidLong, "nid")
		if !ok {
			return nil, &backend.Error{Kind: backend.KindInvalidArgument, Op: op, Detail: fmt.Sprintf("NID %q is missing the 'nid' prefix", nidLong)}
		}
		short = strings.TrimLeft(short, "0")
		if short == "" {
			short = "0"
		}
		nids = append(nids, short)
	}

	b.logger.Debug().Strs("nids", nids).Msg("resolving xnames for NID list")

	components, err := b.ListComponents(ctx, types.ComponentFilter{
		NID:     strings.Join(nids, ","),
		NIDOnly: true,
	})
	if err != nil {
		return nil, err
	}

	xnames := make([]string, 0, len(components))
	for _, component := range components {
		if component.ID != "" {
			xnames = append(xnames, component.ID)
		}
	}
	return xnames, nil
}
