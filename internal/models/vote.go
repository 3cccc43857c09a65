package models

type VotableKind string

const (
	VotableQuestion VotableKind = "q"
	VotableAnswer   VotableKind = "a"
)

func (k VotableKind) Valid() bool {
	return k == VotableQuestion || k == VotableAnswer
}
func (k VotableKind) String() string {
	switch k {
	case VotableQuestion:
		return "question"
	case VotableAnswer:
		return "answer"
	}
	return string(k)
}

type VoteDirection int

const (
	Upvote   VoteDirection = 1
	Downvote VoteDirection = -1
)

func (d VoteDirection) Valid() bool {
	return d == Upvote || d == Downvote
}

type VoteOutcome string

const (
	VoteSuccess      VoteOutcome = "Success"
	VoteAlreadyVoted VoteOutcome = "Already voted"
)

// VoteRecord is the current net direction a user applied to one item.
// 0 means the record exists but no direction is stored yet.
type VoteRecord struct {
	UserID int
	ItemID int
	Vote   int
}

// DecideVote returns what applying direction on top of the stored vote does.
// The counter moves by the raw direction, not by direction-current: a flip
// from -1 to +1 changes the item's votes by +1.
func DecideVote(current int, direction VoteDirection) (delta int, next int, outcome VoteOutcome) {
	if current == int(direction) {
		return 0, current, VoteAlreadyVoted
	}
	return int(direction), int(direction), VoteSuccess
}
