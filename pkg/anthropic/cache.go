package anthropic

// BuildCachedSystemBlocks constructs system content blocks with a cache
// breakpoint. The classification and extraction system prompts are identical
// across every communication in a run, so caching them cuts input cost on
// all calls after the first.
func BuildCachedSystemBlocks(text string) []SystemBlock {
	return []SystemBlock{
		{
			Text: text,
			CacheControl: &CacheControl{
				TTL: "1h",
			},
		},
	}
}
