package models

import (
	"errors"
	"math"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestDecideVote(t *testing.T) {
	require := require.New(t)

	delta, next, outcome := DecideVote(0, Upvote)
	require.Equal(1, delta)
	require.Equal(1, next)
	require.Equal(VoteSuccess, outcome)

	delta, next, outcome = DecideVote(1, Upvote)
	require.Equal(0, delta)
	require.Equal(1, next)
	require.Equal(VoteAlreadyVoted, outcome)

	// Flip: the raw direction is applied, not direction-current.
	delta, next, outcome = DecideVote(-1, Upvote)
	require.Equal(1, delta)
	require.Equal(1, next)
	require.Equal(VoteSuccess, outcome)

	delta, next, outcome = DecideVote(1, Downvote)
	require.Equal(-1, delta)
	require.Equal(-1, next)
	require.Equal(VoteSuccess, outcome)
}
func TestVoteFlipSequence(t *testing.T) {
	require := require.New(t)
	counter, record := 10, 0
	apply := func(d VoteDirection) VoteOutcome {
		delta, next, outcome := DecideVote(record, d)
		counter += delta
		record = next
		return outcome
	}
	require.Equal(VoteSuccess, apply(Downvote))
	require.Equal(9, counter)
	require.Equal(VoteSuccess, apply(Upvote))
	require.Equal(10, counter)
	require.Equal(1, record)
	require.Equal(VoteAlreadyVoted, apply(Upvote))
	require.Equal(10, counter)
}
func TestValidDirectionAndKind(t *testing.T) {
	require := require.New(t)
	require.True(Upvote.Valid())
	require.True(Downvote.Valid())
	require.False(VoteDirection(0).Valid())
	require.False(VoteDirection(2).Valid())
	require.True(VotableQuestion.Valid())
	require.True(VotableAnswer.Valid())
	require.False(VotableKind("x").Valid())
}
func TestValidateQuestion(t *testing.T) {
	require := require.New(t)
	q := &Question{Title: "How do I vote?", Message: "Some message"}

	errs := ValidateQuestion(q, []string{"a", "b", "c"}, 3)
	require.True(errs.Empty(), errs)

	errs = ValidateQuestion(q, []string{"a", "b", "c", "d"}, 3)
	require.True(errs.Has("tags"))
	require.Equal([]string{"Maximum number of tags: 3"}, errs["tags"])

	// Repeated and blank labels are not counted twice.
	errs = ValidateQuestion(q, []string{"a", " a ", "b", "", "c"}, 3)
	require.True(errs.Empty(), errs)

	errs = ValidateQuestion(&Question{Title: "Hey", Message: "hi"}, nil, 3)
	require.True(errs.Has("title"))
	require.True(errs.Has("message"))
}
func TestTooManyTagsError(t *testing.T) {
	err := error(TooManyTagsError{Max: 3})
	require.True(t, errors.Is(err, ErrTooManyTags))
	require.Equal(t, "Maximum number of tags: 3", err.Error())
}
func TestCleanTagLabels(t *testing.T) {
	require.Equal(t,
		[]string{"go", "Go", "web dev"},
		CleanTagLabels([]string{" go", "Go", "go ", "", "  ", "web dev"}),
	)
}
func TestPage(t *testing.T) {
	require := require.New(t)
	p := NewPage(0, 20)
	require.Equal(1, p.Number)
	require.Equal(uint64(0), p.Offset())
	require.Equal(1, p.Count())

	p = NewPage(3, 20)
	p.Total = 41
	require.Equal(uint64(40), p.Offset())
	require.Equal(3, p.Count())
	require.False(p.HasNext())
	require.True(p.HasPrev())

	p = NewPage(math.MaxInt64, AnswersPerPage)
	require.Equal(MaxPageNumber, p.Number)
	require.Equal(uint64((MaxPageNumber-1)*AnswersPerPage), p.Offset())
	require.Less(p.Offset(), uint64(math.MaxInt32))
}
func TestCleanOrdering(t *testing.T) {
	require.Equal(t, OrderByVotes, CleanOrdering("-votes", OrderByNewest, OrderByNewest, OrderByVotes))
	require.Equal(t, OrderByNewest, CleanOrdering("title", OrderByNewest, OrderByNewest, OrderByVotes))
}
func TestValidateSignup(t *testing.T) {
	require := require.New(t)
	req := &SignupReq{Username: "pippo", Email: "pippo@strana.com", Passwd: "b4nana!Split", Passwd2: "b4nana!Split"}
	require.True(ValidateSignup(req).Empty())

	req.Passwd2 = "other"
	require.True(ValidateSignup(req).Has("password2"))

	req = &SignupReq{Username: "bad name", Email: "nope", Passwd: "short", Passwd2: "short"}
	errs := ValidateSignup(req)
	require.True(errs.Has("username"))
	require.True(errs.Has("email"))
	require.True(errs.Has("password1"))
}
func TestEnvConfig(t *testing.T) {
	require := require.New(t)
	env := map[string]string{
		"HASKER_DATABASE_URL":     "postgres://localhost/hasker",
		"HASKER_MAX_TAGS":         "5",
		"HASKER_POSTS_PER_MINUTE": "not a number",
		"HASKER_DEBUG":            "true",
	}
	c := envConfigFromLookup(func(k string) string { return env[k] })
	require.Equal(5, c.MaxTags)
	require.Equal(DefaultPostsPerMinute, c.PostsPerMinute)
	require.Equal(DefaultPort, c.Port)
	require.True(c.Debug)
	require.NoError(c.Validate())

	c = envConfigFromLookup(func(string) string { return "" })
	require.Error(c.Validate())
}
