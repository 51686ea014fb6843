package services

import (
	"sort"

	"realtime-chat/internal/models"
)

// RankContacts orders users by their most recent message with the owner, newest
// first. A user with no messages ranks by account creation time. Ties keep input order.
func RankContacts(users []models.User, last map[string]models.Message, unseen map[string]int) []models.Contact {
	contacts := make([]models.Contact, 0, len(users))
	for _, u := range users {
		c := models.Contact{User: u, UnseenCount: unseen[u.ID]}
		if msg, ok := last[u.ID]; ok {
			c.LastMessage = &msg
		}
		contacts = append(contacts, c)
	}
	sort.SliceStable(contacts, func(i, j int) bool {
		return contacts[i].LastActivity().After(contacts[j].LastActivity())
	})
	return contacts
}
