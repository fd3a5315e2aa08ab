package metadata

import "context"

// Client is the interface every external metadata provider implements (spec §6 "Metadata
// providers (consumed)"). Implementations must never panic; a transport, status or decode
// failure is returned as an error with a nil Result, and Pipeline.Lookup logs it and moves
// on to the next provider in the chain.
type Client interface {
	Name() Source
	SupportedTypes() []MediaType
	RequiresAPIKey() bool
	Available() bool
	Lookup(ctx context.Context, query Query, options Options) (*Result, error)
}

// Chain is the per-media-type ordered list of providers consulted by Pipeline.Lookup.
type Chain []Client

// DefaultChains mirrors spec §4.13's routing table.
func DefaultChains(clients map[Source]Client) map[MediaType]Chain {
	build := func(sources ...Source) Chain {
		chain := make(Chain, 0, len(sources))
		for _, s := range sources {
			if c, ok := clients[s]; ok {
				chain = append(chain, c)
			}
		}
		return chain
	}
	return map[MediaType]Chain{
		MediaBook:         build(SourceOpenLibrary, SourceGoogleBooks, SourceWikipedia),
		MediaMovie:        build(SourceTMDB, SourceOMDb, SourceWikipedia),
		MediaTVSeries:     build(SourceTMDB, SourceOMDb, SourceTVMaze, SourceWikipedia),
		MediaTVEpisode:    build(SourceTMDB, SourceOMDb, SourceTVMaze),
		MediaYouTubeVideo: build(SourceYtDlp),
	}
}
