package web

import "net/http"

func (s *Server) handleDashboard(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		http.NotFound(w, r)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Write([]byte(dashboardHTML))
}

const dashboardHTML = `<!DOCTYPE html>
<html lang="ru">
<head>
    <meta charset="UTF-8">
    <meta name="viewport" content="width=device-width, initial-scale=1.0">
    <title>🔒 pscan - пассивный сканер</title>
    <style>
        * { margin: 0; padding: 0; box-sizing: border-box; }
        body {
            font-family: 'Segoe UI', Tahoma, Geneva, Verdana, sans-serif;
            background: linear-gradient(135deg, #667eea 0%, #764ba2 100%);
            color: #333; min-height: 100vh;
        }
        .container { max-width: 1400px; margin: 0 auto; padding: 2rem; }
        .header { text-align: center; margin-bottom: 2rem; color: white; }
        .stats-grid { display: grid; grid-template-columns: repeat(auto-fit, minmax(180px, 1fr)); gap: 1.5rem; margin-bottom: 2rem; }
        .stat-card { background: rgba(255,255,255,0.95); padding: 1.5rem; border-radius: 15px; text-align: center; }
        .stat-number { font-size: 2.2rem; font-weight: bold; }
        .stat-label { color: #666; text-transform: uppercase; font-size: 0.85rem; }
        .section { background: rgba(255,255,255,0.95); border-radius: 15px; overflow: hidden; }
        .section-header { background: #4b4f9e; color: white; padding: 1.2rem; font-weight: 600; }
        .alert-item { padding: 1.2rem; border-bottom: 1px solid #e9ecef; }
        .alert-head { display: flex; justify-content: space-between; }
        .risk-badge { padding: 0.3rem 0.9rem; border-radius: 20px; font-size: 0.8rem; color: white; text-transform: uppercase; }
        .risk-high { background: #e67e22; } .risk-medium { background: #f39c12; }
        .risk-low { background: #27ae60; } .risk-informational { background: #3498db; }
        .meta { color: #666; font-size: 0.9rem; margin-top: 0.5rem; }
        .no-data { text-align: center; padding: 3rem; color: #999; }
    </style>
</head>
<body>
    <div class="container">
        <div class="header"><h1>🔒 pscan</h1><p>Находки пассивного сканирования трафика</p></div>
        <div class="stats-grid">
            <div class="stat-card"><div class="stat-number" id="messages">0</div><div class="stat-label">Запросов</div></div>
            <div class="stat-card"><div class="stat-number" id="alerts">0</div><div class="stat-label">Находок</div></div>
            <div class="stat-card"><div class="stat-number" id="high">0</div><div class="stat-label">Высокий риск</div></div>
            <div class="stat-card"><div class="stat-number" id="dropped">0</div><div class="stat-label">Пропущено</div></div>
        </div>
        <div class="section">
            <div class="section-header">🚨 Находки</div>
            <div id="alertsContainer"><div class="no-data">Загрузка...</div></div>
        </div>
    </div>
    <script>
        function esc(s) {
            const d = document.createElement('div');
            d.textContent = s == null ? '' : String(s);
            return d.innerHTML;
        }

        async function loadStats() {
            const data = await (await fetch('/api/stats')).json();
            document.getElementById('messages').textContent = data.messages || 0;
            document.getElementById('alerts').textContent = data.alerts || 0;
            document.getElementById('high').textContent = (data.alerts_by_risk || {}).high || 0;
            document.getElementById('dropped').textContent = data.dropped || 0;
        }

        async function loadAlerts() {
            const alerts = await (await fetch('/api/alerts')).json();
            const container = document.getElementById('alertsContainer');
            if (!alerts || alerts.length === 0) {
                container.innerHTML = '<div class="no-data">📭 Пока нет находок</div>';
                return;
            }
            container.innerHTML = alerts.map(a =>
                '<div class="alert-item">' +
                '<div class="alert-head"><strong>' + esc(a.name) + '</strong>' +
                '<span class="risk-badge risk-' + esc(a.risk) + '">' + esc(a.risk) + '</span></div>' +
                '<div class="meta">' + esc(a.method) + ' ' + esc(a.url) + ' → ' + esc(a.status_code) +
                ' · CWE-' + esc(a.cwe_id) + ' · WASC-' + esc(a.wasc_id) + ' · x' + esc(a.count) + '</div>' +
                (a.page_title ? '<div class="meta">📄 ' + esc(a.page_title) + '</div>' : '') +
                '<div class="meta">' + esc(a.description) + '</div>' +
                '</div>').join('');
        }

        function loadData() {
            loadStats().catch(console.error);
            loadAlerts().catch(console.error);
        }

        const ws = new WebSocket((location.protocol === 'https:' ? 'wss://' : 'ws://') + location.host + '/ws');
        ws.onmessage = loadData;

        setInterval(loadData, 10000);
        loadData();
    </script>
</body>
</html>`
