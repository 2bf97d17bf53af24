package keywords

import "strings"

// Stop-word sets used by Extract. Both sets are fixed; changing them changes
// ranking output.

var cjkStopWords = toSet([]string{
	"一下", "一个", "一些", "不", "么", "也", "了", "什么", "他", "他们", "以及", "们",
	"但是", "你", "你们", "关于", "其", "则", "却", "叫", "可以", "吗", "吧", "呢", "和",
	"哪", "哪些", "哪个", "啊", "因为", "在", "她", "如何", "如果", "它", "对", "将", "就",
	"帮我", "并", "或", "或者", "所以", "把", "是", "是否", "是不是", "有", "有没有", "来",
	"没有", "的", "的话", "等", "给", "而", "能", "能否", "自己", "被", "请", "请问", "还",
	"还是", "这", "这个", "这些", "这样", "那", "那个", "那些", "都", "里", "问", "告诉",
	"与", "及", "我", "我们", "为", "为什么", "之", "于", "从", "怎么", "怎样", "着", "过",
	"到", "要", "会", "去", "说",
})

var englishStopWords = toSet([]string{
	"a", "about", "all", "also", "am", "an", "and", "any", "are", "as", "at", "be",
	"been", "being", "but", "by", "can", "could", "did", "do", "does", "down", "for",
	"from", "had", "has", "have", "he", "her", "here", "him", "his", "how", "i", "if",
	"in", "into", "is", "it", "its", "just", "may", "me", "might", "must", "my", "no",
	"not", "of", "on", "or", "our", "out", "over", "please", "shall", "she", "should",
	"so", "some", "tell", "than", "that", "the", "their", "them", "then", "there",
	"these", "they", "this", "those", "to", "up", "us", "very", "was", "we", "were",
	"what", "when", "where", "which", "who", "whom", "whose", "why", "will", "with",
	"would", "you", "your",
})

func toSet(words []string) map[string]struct{} {
	set := make(map[string]struct{}, len(words))
	for _, w := range words {
		set[w] = struct{}{}
	}
	return set
}

// IsStopWord reports whether word is in either stop-word set.
// Latin words are compared lower-cased.
func IsStopWord(word string) bool {
	if _, ok := cjkStopWords[word]; ok {
		return true
	}
	_, ok := englishStopWords[strings.ToLower(word)]
	return ok
}
