package models

// Session is the live state of one user's interview. It lives only in memory.
type Session struct {
	UserID       string
	DisplayName  string
	GuildID      string
	GuildName    string
	CategoryName string
	Questions    []Question
	CurrentIndex int
	Answers      []Answer
}

// Current returns the question awaiting an answer
func (s *Session) Current() (Question, bool) {
	if s.CurrentIndex < 0 || s.CurrentIndex >= len(s.Questions) {
		return Question{}, false
	}
	return s.Questions[s.CurrentIndex], true
}

// Done reports whether every question has been answered
func (s *Session) Done() bool {
	return s.CurrentIndex >= len(s.Questions)
}

// Record appends an answer to the current question and moves to the next one
func (s *Session) Record(answer string) {
	q, ok := s.Current()
	if !ok {
		return
	}
	s.Answers = append(s.Answers, Answer{Question: q.Text, Answer: answer})
	s.CurrentIndex++
}

// Clone returns a deep copy
func (s Session) Clone() Session {
	c := s
	c.Questions = append([]Question(nil), s.Questions...)
	c.Answers = append([]Answer(nil), s.Answers...)
	return c
}
