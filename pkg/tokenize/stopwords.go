package tokenize

import "github.com/orsinium-labs/stopwords"

// enStopwords is the ecosystem English stop-word list, loaded once at
// package init the same way the teacher's discovery registry loads it
// per-instance via stopwords.MustGet("en").
var enStopwords = stopwords.MustGet("en")
