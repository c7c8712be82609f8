package model

// CardFilter narrows ListCards results. Zero values mean "no constraint".
type CardFilter struct {
	BoardID    string
	Status     []CardStatus
	AssigneeID string
	Search     string
	Limit      int
	Offset     int
}
