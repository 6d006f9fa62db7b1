package cache

import (
	"strconv"
	"strings"
)

const (
	PrefixEvents     = "events:"
	PrefixCandidates = "candidates:"
	PrefixChannels   = "channels:"
)

func normKeyword(k string) string {
	return strings.ToLower(strings.TrimSpace(k))
}

func EventsListKey(keyword string) string {
	return PrefixEvents + "list:v1:keyword=" + normKeyword(keyword)
}

func EndingSoonKey() string {
	return PrefixEvents + "ending-soon:v1"
}

func CandidatesListKey(eventID int64, keyword string) string {
	return PrefixCandidates + "list:v1:event=" + strconv.FormatInt(eventID, 10) + ":keyword=" + normKeyword(keyword)
}

func ChannelsListKey(keyword string) string {
	return PrefixChannels + "list:v1:keyword=" + normKeyword(keyword)
}

// Last*Key hold, per dashboard session, the ids of every listing that
// session fetched, one entry per filter. Mutations on an id none of them
// contains are refused.
func LastEventsKey(session string) string     { return PrefixEvents + "last:" + session }
func LastCandidatesKey(session string) string { return PrefixCandidates + "last:" + session }
func LastChannelsKey(session string) string   { return PrefixChannels + "last:" + session }
