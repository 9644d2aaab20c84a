// Package skillloop implements the Skill Interaction Loop (spec §4.6): the
// shared send/poll/classify/answer primitive every phase runner (C11, C12)
// drives one agent handle through. It sends an initial command, polls the
// pane on a fixed interval, classifies each snapshot, answers questions
// through the AQA (escalating matters of genuine preference instead), and
// returns once the agent reports completion, fails, or the timeout elapses.
package skillloop
