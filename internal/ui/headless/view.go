package headless

import (
	zone "github.com/lrstanley/bubblezone"

	headlessview "feedsync/internal/ui/headless/view"
)

func (m *headlessModel) runtimeView() headlessview.Runtime {
	return headlessview.Runtime{
		BuildVersion: m.version,
		Running:      m.running,
		Connecting:   m.connecting,
		Status:       m.status,
		StatusKind:   m.kind,
		CanConnect:   m.conn().CanConnect,
		Feeds:        m.board.rows,
		HealthDetail: m.board.detail,
		Deliveries:   m.board.recent,
		Unread:       len(m.board.unread),
	}
}

func (m *headlessModel) View() string {
	return zone.Scan(headlessview.RenderApp(&m.ui, m.runtimeView()))
}
