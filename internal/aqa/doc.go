// Package aqa implements the Autonomous Question-Answerer (spec §4.4): given
// a question the skill interaction loop (C6) classified as a clarification
// request, produce a concise answer shaped to the question's type, record it
// in the workflow's ConversationContext, and decide whether the question is
// instead a matter of genuine personal preference that must be escalated to
// an operator rather than answered autonomously.
//
// Answer generation is pluggable behind the AnswerGenerator interface: the
// production path re-invokes the driven coding-assistant CLI in a
// non-interactive mode (CLIAnswerGenerator), an alternative path calls an
// LLM directly through langchaingo (LangChainAnswerGenerator), and tests use
// a scripted generator. Shaping the raw generator response down to a digit,
// a yes/no, or a single token, and deciding escalation, is the same for
// every generator.
package aqa
