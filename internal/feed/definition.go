package feed

import "feedsync/internal/realtime"

// definition holds what differs between the two feeds.
type definition struct {
	feed           Feed
	prefix         string
	requiresAuth   bool
	broadcastEvent string
	table          string
	rowActions     []realtime.Action
	ops            map[Op]bool
	// scopeColumn filters row changes to the scope key when set.
	scopeColumn  string
	defaultScope string
}

var notificationsDefinition = definition{
	feed:           Notifications,
	prefix:         "notifications",
	requiresAuth:   true,
	broadcastEvent: "new_notification",
	table:          "notifications",
	rowActions:     []realtime.Action{realtime.ActionInsert},
	ops:            map[Op]bool{OpInsert: true},
	scopeColumn:    "user_id",
}

var activitiesDefinition = definition{
	feed:           Activities,
	prefix:         "activities",
	requiresAuth:   false,
	broadcastEvent: "new_activity",
	table:          "activities",
	rowActions:     []realtime.Action{realtime.ActionAll},
	ops:            map[Op]bool{OpInsert: true, OpUpdate: true, OpDelete: true},
	defaultScope:   "public",
}

func (d definition) channelName(scope string) string {
	if scope == "" {
		scope = d.defaultScope
	}
	if scope == "" {
		return d.prefix
	}
	return d.prefix + ":" + scope
}

// bind attaches both push origins to one handler.
func (d definition) bind(ch realtime.Channel, scope string, handler realtime.Handler) {
	ch.On(realtime.KindBroadcast, realtime.Filter{Event: d.broadcastEvent}, handler)
	where := ""
	if d.scopeColumn != "" && scope != "" {
		where = d.scopeColumn + "=eq." + scope
	}
	for _, action := range d.rowActions {
		ch.On(realtime.KindRowChange, realtime.Filter{
			Action: action,
			Schema: "public",
			Table:  d.table,
			Where:  where,
		}, handler)
	}
}

func (d definition) supports(op Op) bool {
	return d.ops[op]
}
