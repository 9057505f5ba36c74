package api

const dashboardHTML = `<!DOCTYPE html>
<html lang="en">
<head>
<meta charset="UTF-8">
<meta name="viewport" content="width=device-width, initial-scale=1.0">
<title>tcplb Dashboard</title>
<style>
*,*::before,*::after{box-sizing:border-box;margin:0;padding:0}
:root{
  --bg:#0f1117;--bg-card:#161b22;--bg-card-hover:#1c2129;
  --border:#30363d;--text:#e1e4e8;--text-muted:#8b949e;
  --primary:#58a6ff;--green:#3fb950;--red:#f85149;--yellow:#d29922;
  --radius:8px;
}
body{font-family:-apple-system,BlinkMacSystemFont,"Segoe UI",Helvetica,Arial,sans-serif;background:var(--bg);color:var(--text);line-height:1.5;min-height:100vh}
a{color:var(--primary);text-decoration:none}
.container{max-width:1100px;margin:0 auto;padding:24px}
header{background:var(--bg-card);border-bottom:1px solid var(--border);padding:16px 24px}
.header-inner{max-width:1100px;margin:0 auto;display:flex;align-items:center;gap:16px;flex-wrap:wrap}
.header-title{font-size:20px;font-weight:700}
.badge{display:inline-flex;align-items:center;gap:4px;padding:2px 10px;border-radius:12px;font-size:12px;font-weight:600;border:1px solid var(--border)}
.badge-healthy{color:var(--green);border-color:var(--green)}
.badge-unhealthy{color:var(--red);border-color:var(--red)}
.card{background:var(--bg-card);border:1px solid var(--border);border-radius:var(--radius);padding:20px;margin-top:20px}
.stat-grid{display:grid;grid-template-columns:repeat(auto-fit,minmax(140px,1fr));gap:16px;margin-top:12px}
.stat{background:var(--bg);border:1px solid var(--border);border-radius:var(--radius);padding:12px}
.stat-label{font-size:12px;color:var(--text-muted);text-transform:uppercase}
.stat-value{font-size:22px;font-weight:700;margin-top:4px}
table{width:100%;border-collapse:collapse;margin-top:12px}
th,td{text-align:left;padding:8px 12px;border-bottom:1px solid var(--border)}
th{color:var(--text-muted);font-size:12px;text-transform:uppercase}
.bar{height:6px;border-radius:3px;background:var(--border);overflow:hidden}
.bar-fill{height:100%;background:var(--primary)}
.muted{color:var(--text-muted);font-size:13px}
</style>
</head>
<body>
<header>
  <div class="header-inner">
    <div class="header-title">tcplb</div>
    <span id="healthBadge" class="badge">checking...</span>
  </div>
</header>
<div class="container">
  <div class="card">
    <div class="muted">Process status</div>
    <div class="stat-grid" id="statusGrid"></div>
  </div>
  <div class="card">
    <div class="muted">Backends</div>
    <table>
      <thead><tr><th>Name</th><th>Address</th><th>Active</th><th>Capacity</th><th>Load</th></tr></thead>
      <tbody id="backendRows"></tbody>
    </table>
  </div>
</div>
<script>
function apiFetch(path) {
  return fetch(path).then(function(resp) {
    if (!resp.ok) { throw new Error(resp.status + ' ' + resp.statusText); }
    return resp.json();
  });
}

function renderStatus(data) {
  var grid = document.getElementById('statusGrid');
  var items = [
    ['Uptime (s)', data.uptime_seconds],
    ['Goroutines', data.goroutines],
    ['Memory (MB)', data.memory_mb ? data.memory_mb.toFixed(1) : 0],
    ['Backends', data.num_backends]
  ];
  grid.innerHTML = items.map(function(kv) {
    return '<div class="stat"><div class="stat-label">' + kv[0] + '</div><div class="stat-value">' + kv[1] + '</div></div>';
  }).join('');
}

function renderBackends(list) {
  var rows = document.getElementById('backendRows');
  rows.innerHTML = list.map(function(b) {
    var pct = Math.round(b.load_fraction * 100);
    return '<tr>' +
      '<td>' + b.name + '</td>' +
      '<td>' + b.address + ':' + b.port + '</td>' +
      '<td>' + b.active + '</td>' +
      '<td>' + b.capacity + '</td>' +
      '<td><div class="bar"><div class="bar-fill" style="width:' + pct + '%"></div></div></td>' +
      '</tr>';
  }).join('');
}

function renderHealth(data) {
  var badge = document.getElementById('healthBadge');
  if (data.status === 'healthy') {
    badge.className = 'badge badge-healthy';
    badge.textContent = 'healthy';
  } else {
    badge.className = 'badge badge-unhealthy';
    badge.textContent = 'unhealthy';
  }
}

function refresh() {
  apiFetch('/status').then(renderStatus).catch(function() {});
  apiFetch('/backends').then(renderBackends).catch(function() {});
  apiFetch('/health').then(renderHealth).catch(function() {
    renderHealth({status: 'unhealthy'});
  });
}

refresh();
setInterval(refresh, 5000);
</script>
</body>
</html>`
