// meta/meta.go
package meta

// ITERATIONS defines the number of MCTS iterations per question.
const ITERATIONS = 64

// MAX_CANDIDATES defines how many terminal paths a search collects before stopping.
const MAX_CANDIDATES = 5

// EXPLORATION is the UCB exploration constant.
const EXPLORATION = 1.4

// MAX_DEPTH caps the number of steps on one reasoning path.
const MAX_DEPTH = 12

// MIN_SCORE_TO_EXPAND is the pruning floor. The default never prunes.
const MIN_SCORE_TO_EXPAND = -1e9

// PLANNER_TOPK bounds the number of action specs kept from one proposal.
const PLANNER_TOPK = 5

// ERROR_PENALTY is attached to observations of failed actions.
const ERROR_PENALTY = -0.25

// LLM_RETRIES is the number of extra attempts for malformed JSON replies.
const LLM_RETRIES = 2

const SERVER_ADDR = ":8080"
