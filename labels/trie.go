package labels

import "strings"

// Trie is a phrase-lookup structure mapping token sequences to the spans
// that match them. Lookup is case-insensitive: phrases and document tokens
// are folded the same way.
type Trie struct {
	root *trieNode
	size int
}

type trieNode struct {
	children map[string]*trieNode
	keys     []string // phrase keys terminating at this node
}

func NewTrie() *Trie {
	return &Trie{root: &trieNode{children: map[string]*trieNode{}}}
}

// AddPhrase stores a token sequence under key. Empty sequences are ignored.
func (tr *Trie) AddPhrase(key string, words []string) {
	if len(words) == 0 {
		return
	}
	node := tr.root
	for _, w := range words {
		w = strings.ToLower(w)
		child, ok := node.children[w]
		if !ok {
			child = &trieNode{children: map[string]*trieNode{}}
			node.children[w] = child
		}
		node = child
	}
	node.keys = append(node.keys, key)
	tr.size++
}

// Size is the number of phrases stored.
func (tr *Trie) Size() int { return tr.size }

// Lookup finds every subspan of sp whose tokens spell a stored phrase.
// Matches are reported in document order; overlapping and nested phrase
// hits all count.
func (tr *Trie) Lookup(sp Span) []Span {
	var out []Span
	for start := 0; start < sp.Len(); start++ {
		node := tr.root
		for i := start; i < sp.Len(); i++ {
			child, ok := node.children[strings.ToLower(sp.Token(i).Text)]
			if !ok {
				break
			}
			node = child
			if len(node.keys) > 0 {
				out = append(out, sp.SubSpan(start, i+1))
			}
		}
	}
	return out
}
