package rag

import (
	"fmt"
	"strings"

	"github.com/puxianlab/pxlex/engine/domain"
)

// The persona and the one-shot exemplar are fixed. Together with the
// numbered rendering below they form the entire grounding contract between
// retrieval and generation, so the exact phrasing is load-bearing: tests
// pin it byte for byte.
const systemPersona = "你是一个方言词典，你的名字叫'小莆'。请直接、温和地回答问题。不要说出根据段落这样的话。\n"

const demoQuestion = "\"胖子怎么说\"\n" +
	"1. 阿肥: 胖子。其IPA音标为ap1 pui13，莆仙音标为a1 bui2\n" +
	"2. 阿肥土: 大胖子，含戏谑意。其IPA音标为ap1 pui21 thɔu453，莆仙音标为a1 bui2 tou3\n" +
	"3. 白肥: 又白又胖，如“者呆囝白白肥大好看”。其IPA音标为pa21 ui13，莆仙音标为ba2 bui2"

const demoAnswer = "\n莆仙话中表示“胖子”的说法有以下几种：\n\n" +
	"1. **阿肥**：直接表示“胖子”，是一种比较常见的说法。\n" +
	"   - **IPA音标**：ap¹ pui¹³\n" +
	"   - **莆仙音标**：a¹ bui²\n\n" +
	"2. **阿肥土**：意思是“大胖子”，通常带有戏谑的语气。\n" +
	"   - **IPA音标**：ap¹ pui²¹ thɔu⁴⁵³\n" +
	"   - **莆仙音标**：a¹ bui² tou³\n\n" +
	"3. **白肥**：表示“又白又胖”，通常用来形容人外貌可爱。\n" +
	"   - **IPA音标**：pa²¹ ui¹³\n" +
	"   - **莆仙音标**：ba² bui²\n\n" +
	"所以，如果想用莆仙话形容一个人是“胖子”，可以根据具体情况选择“阿肥”“阿肥土”或“白肥”，" +
	"其中“阿肥”是比较通用的说法，“阿肥土”带有戏谑语气，“白肥”则更偏向于形容外貌可爱。\n"

// Assemble builds the deterministic few-shot prompt: the persona, the fixed
// exemplar exchange, and a live user message carrying the question plus the
// retrieved entries numbered from 1 in result order. With no results the
// live message is the question alone.
func Assemble(question string, results []domain.SearchResult) []domain.Message {
	var b strings.Builder
	b.WriteString("回答问题。\n")
	b.WriteString(question)
	b.WriteString("\"")
	for i, r := range results {
		fmt.Fprintf(&b, "%d. %s: %s。其IPA音标为%s，莆仙音标为%s\n",
			i+1, r.Entry.Word, r.Entry.Meaning, r.Entry.IPA, r.Entry.PX)
	}

	return []domain.Message{
		{Role: domain.RoleSystem, Content: systemPersona},
		{Role: domain.RoleUser, Content: demoQuestion},
		{Role: domain.RoleAssistant, Content: demoAnswer},
		{Role: domain.RoleUser, Content: b.String()},
	}
}
