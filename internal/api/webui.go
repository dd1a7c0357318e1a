package api

const webUI = `<!DOCTYPE html>
<html lang="en">
<head>
<meta charset="UTF-8">
<meta name="viewport" content="width=device-width, initial-scale=1.0">
<title>Pad Fleet Status</title>
<style>
*{box-sizing:border-box;margin:0;padding:0}
body{font-family:-apple-system,BlinkMacSystemFont,'Segoe UI',Roboto,sans-serif;background:#f5f5f5;color:#333;line-height:1.6}

/* Header */
.hdr{background:linear-gradient(135deg,#667eea 0%,#764ba2 100%);color:#fff;padding:14px 20px;display:flex;align-items:center;justify-content:space-between;position:sticky;top:0;z-index:100}
.hdr h1{font-size:18px;font-weight:600}
.hdr-dot{width:10px;height:10px;border-radius:50%;display:inline-block;margin-left:8px}
.hdr-right{display:flex;align-items:center;font-size:13px;gap:6px}
.dot-green{background:#22c55e}.dot-red{background:#ef4444}.dot-yellow{background:#f59e0b}.dot-gray{background:#9ca3af}

/* Tab bar */
.tabs{display:flex;border-bottom:2px solid #e5e7eb;background:#fff;padding:0 16px;position:sticky;top:48px;z-index:99}
.tab{padding:12px 20px;cursor:pointer;font-size:14px;font-weight:500;color:#666;border-bottom:2px solid transparent;margin-bottom:-2px;transition:all .2s}
.tab:hover{color:#333}
.tab.active{color:#667eea;border-bottom-color:#667eea}

/* Content */
.content{max-width:1200px;margin:0 auto;padding:20px}
.page{display:none}
.page.active{display:block}
.card{background:#fff;border-radius:8px;padding:20px;margin-bottom:16px;box-shadow:0 1px 3px rgba(0,0,0,.1)}
.card h2{font-size:16px;margin-bottom:12px;padding-bottom:8px;border-bottom:1px solid #eee}

/* Buttons */
.btn{display:inline-flex;align-items:center;gap:6px;padding:8px 16px;border-radius:6px;border:none;cursor:pointer;font-size:14px;font-weight:500;transition:all .2s;line-height:1.4;text-decoration:none}
.btn-primary{background:#667eea;color:#fff}.btn-primary:hover{background:#5a67d8}
.btn-secondary{background:#e5e7eb;color:#374151}.btn-secondary:hover{background:#d1d5db}
.btn-danger{background:#fff;color:#ef4444;border:1px solid #ef4444}.btn-danger:hover{background:#fef2f2}
.btn-row{display:flex;gap:8px;flex-wrap:wrap;margin-top:12px}

/* Stats */
.stats{display:grid;grid-template-columns:repeat(auto-fit,minmax(150px,1fr));gap:12px;margin-bottom:16px}
.stat{background:#fff;border-radius:8px;padding:16px;box-shadow:0 1px 3px rgba(0,0,0,.1)}
.stat span{display:block;font-size:12px;color:#888;text-transform:uppercase;letter-spacing:.05em}
.stat strong{font-size:22px}

/* Filters */
.filters{display:flex;gap:8px;flex-wrap:wrap;margin-bottom:12px}
.filters input,.filters select{padding:8px 12px;border:1px solid #ddd;border-radius:6px;font-size:14px}
.filters input{flex:1;min-width:180px}

/* Table */
table{width:100%;border-collapse:collapse;font-size:13px}
th{text-align:left;font-weight:600;color:#555;font-size:12px;text-transform:uppercase;letter-spacing:.05em;padding:8px;border-bottom:2px solid #eee;cursor:pointer;white-space:nowrap}
td{padding:8px;border-bottom:1px solid #f0f0f0;white-space:nowrap}
.mono{font-family:'SF Mono','Cascadia Code','Courier New',monospace;font-size:12px}
.pager{display:flex;justify-content:space-between;align-items:center;margin-top:12px;font-size:13px;color:#666}

/* Status badges */
.badge{display:inline-block;padding:2px 10px;border-radius:20px;font-size:12px;font-weight:500}
.badge-green{background:#dcfce7;color:#166534}
.badge-red{background:#fee2e2;color:#991b1b}
.badge-yellow{background:#fef9c3;color:#854d0e}
.badge-gray{background:#f3f4f6;color:#374151}

/* Logs */
.log-container{background:#1a1a2e;border-radius:8px;padding:16px;font-family:'SF Mono','Cascadia Code','Courier New',monospace;font-size:13px;max-height:500px;overflow-y:auto;color:#a0aec0}
.log-entry{padding:2px 0;white-space:pre-wrap;word-break:break-all}
.log-time{color:#667eea}
.log-info{color:#a0aec0}.log-warn{color:#f59e0b}.log-error{color:#ef4444}

/* Toast */
.toast{position:fixed;top:60px;right:20px;padding:12px 20px;border-radius:6px;color:#fff;font-size:14px;z-index:200;box-shadow:0 4px 12px rgba(0,0,0,.15)}
.toast-success{background:#22c55e}.toast-error{background:#ef4444}

@media(max-width:640px){
 .content{padding:12px}
 .tab{padding:10px 14px;font-size:13px;white-space:nowrap}
}
</style>
</head>
<body>

<div class="hdr">
 <h1>Pad Fleet Status</h1>
 <div class="hdr-right">
  <span id="hdr-status-text">Checking...</span>
  <span id="hdr-dot" class="hdr-dot dot-yellow"></span>
 </div>
</div>

<div class="tabs">
 <div class="tab active" data-page="devices" onclick="nav('devices')">Devices</div>
 <div class="tab" data-page="connection" onclick="nav('connection')">Connection</div>
 <div class="tab" data-page="logs" onclick="nav('logs')">Logs</div>
</div>

<div class="content">

<div class="page active" id="page-devices">
 <div class="stats">
  <div class="stat"><span>Devices</span><strong id="st-devices">-</strong></div>
  <div class="stat"><span>Runs</span><strong id="st-runs">-</strong></div>
  <div class="stat"><span>Successes</span><strong id="st-success">-</strong></div>
  <div class="stat"><span>Errors</span><strong id="st-errors">-</strong></div>
  <div class="stat"><span>Success rate</span><strong id="st-rate">-</strong></div>
 </div>
 <div class="card">
  <div class="filters">
   <input id="f-search" placeholder="Search pad code, code or proxy" oninput="resetPage()">
   <select id="f-status" onchange="resetPage()"><option value="">All statuses</option></select>
   <a class="btn btn-secondary" id="csv-link" href="/api/devices.csv">Export CSV</a>
  </div>
  <table>
   <thead><tr>
    <th onclick="sortBy('pad_code')">Pad code</th>
    <th onclick="sortBy('current_status')">Status</th>
    <th onclick="sortBy('number_of_run')">Runs</th>
    <th onclick="sortBy('num_of_success')">Success</th>
    <th onclick="sortBy('num_of_error')">Errors</th>
    <th onclick="sortBy('success_rate')">Rate</th>
    <th onclick="sortBy('country')">Country</th>
    <th>Proxy</th>
    <th onclick="sortBy('updated_at')">Updated</th>
   </tr></thead>
   <tbody id="device-rows"></tbody>
  </table>
  <div class="pager">
   <span id="pager-info"></span>
   <div class="btn-row" style="margin:0">
    <button class="btn btn-secondary" onclick="movePage(-1)">Prev</button>
    <button class="btn btn-secondary" onclick="movePage(1)">Next</button>
   </div>
  </div>
 </div>
</div>

<div class="page" id="page-connection">
 <div class="card">
  <h2>Status feed</h2>
  <table id="conn-table"></table>
  <div class="btn-row">
   <button class="btn btn-primary" onclick="feedAction('connect')">Connect</button>
   <button class="btn btn-secondary" onclick="feedAction('refresh')">Request full update</button>
   <button class="btn btn-danger" onclick="feedAction('disconnect')">Disconnect</button>
  </div>
 </div>
 <div class="card">
  <h2>Recent transitions</h2>
  <table><tbody id="event-rows"></tbody></table>
 </div>
</div>

<div class="page" id="page-logs">
 <div class="card">
  <div class="filters">
   <select id="log-level" onchange="refreshLogs()">
    <option value="">All levels</option>
    <option value="warn,error">Warnings and errors</option>
    <option value="error">Errors</option>
   </select>
  </div>
  <div class="log-container" id="log-viewer"></div>
 </div>
</div>

</div>
<div id="toast-root"></div>

<script>
var state = {page: 1, sort: 'pad_code', order: 'asc', totalPages: 0, current: 'devices'};

function nav(page) {
 state.current = page;
 var tabs = document.querySelectorAll('.tab');
 for (var i = 0; i < tabs.length; i++) tabs[i].classList.toggle('active', tabs[i].dataset.page === page);
 var pages = document.querySelectorAll('.page');
 for (var j = 0; j < pages.length; j++) pages[j].classList.toggle('active', pages[j].id === 'page-' + page);
 refresh();
}

function query() {
 var p = new URLSearchParams();
 var search = document.getElementById('f-search').value.trim();
 var status = document.getElementById('f-status').value;
 if (search) p.set('search', search);
 if (status) p.set('status', status);
 p.set('sort', state.sort);
 p.set('order', state.order);
 return p;
}

function refreshDevices() {
 var p = query();
 document.getElementById('csv-link').href = '/api/devices.csv?' + p.toString();
 p.set('page', state.page);
 fetch('/api/devices?' + p.toString()).then(function(r){return r.json()}).then(function(data) {
  state.page = data.page;
  state.totalPages = data.total_pages;
  var html = '';
  (data.items || []).forEach(function(d) {
   var rate = d.number_of_run > 0 ? (d.num_of_success / d.number_of_run * 100).toFixed(1) + '%' : '-';
   html += '<tr><td class="mono">' + esc(d.pad_code) + '</td><td>' + badge(d.current_status) + '</td>' +
    '<td>' + d.number_of_run + '</td><td>' + d.num_of_success + '</td><td>' + d.num_of_error + '</td>' +
    '<td>' + rate + '</td><td>' + esc(d.country) + '</td><td class="mono">' + esc(d.proxy) + '</td>' +
    '<td>' + esc(d.updated_at) + '</td></tr>';
  });
  if (!html) html = '<tr><td colspan="9" style="text-align:center;color:#888;padding:30px">No devices</td></tr>';
  document.getElementById('device-rows').innerHTML = html;
  document.getElementById('pager-info').textContent = data.total + ' devices, page ' + data.page + ' of ' + Math.max(data.total_pages, 1);
 }).catch(function(){});

 fetch('/api/summary').then(function(r){return r.json()}).then(function(data) {
  var s = data.summary;
  document.getElementById('st-devices').textContent = s.devices;
  document.getElementById('st-runs').textContent = s.runs;
  document.getElementById('st-success').textContent = s.successes;
  document.getElementById('st-errors').textContent = s.errors;
  document.getElementById('st-rate').textContent = s.success_rate.toFixed(1) + '%';
  var sel = document.getElementById('f-status');
  var chosen = sel.value;
  var opts = '<option value="">All statuses</option>';
  (data.statuses || []).forEach(function(st) {
   opts += '<option value="' + esc(st) + '"' + (st === chosen ? ' selected' : '') + '>' + esc(st) + '</option>';
  });
  sel.innerHTML = opts;
 }).catch(function(){});
}

function refreshHeader() {
 fetch('/api/status').then(function(r){return r.json()}).then(function(data) {
  var f = data.feed;
  var dot = {open:'dot-green', connecting:'dot-yellow', closing:'dot-yellow', failed:'dot-red', closed:'dot-red'}[f.state] || 'dot-gray';
  document.getElementById('hdr-dot').className = 'hdr-dot ' + dot;
  var text = 'Feed ' + f.state;
  if (f.retry_pending) text += ' (retry ' + f.reconnect_attempts + '/' + f.max_attempts + ')';
  if (data.fallback && data.fallback.polls && f.state !== 'open') text += ', polling';
  document.getElementById('hdr-status-text').textContent = text;

  if (state.current !== 'connection') return;
  var rows = [
   ['State', f.state], ['Endpoint', f.endpoint], ['Session', f.session_id || '-'],
   ['Reconnect attempts', f.reconnect_attempts + ' / ' + f.max_attempts],
   ['Last message', timeAgo(f.last_message)], ['Last error', f.last_error || '-'],
   ['Snapshots', data.board.snapshots], ['Deltas', data.board.deltas]
  ];
  document.getElementById('conn-table').innerHTML = rows.map(function(r) {
   return '<tr><td style="color:#666">' + r[0] + '</td><td class="mono">' + esc(r[1]) + '</td></tr>';
  }).join('');
 }).catch(function() {
  document.getElementById('hdr-dot').className = 'hdr-dot dot-gray';
  document.getElementById('hdr-status-text').textContent = 'Monitor unreachable';
 });
}

function refreshEvents() {
 fetch('/api/events').then(function(r){return r.json()}).then(function(data) {
  document.getElementById('event-rows').innerHTML = (data.events || []).map(function(e) {
   return '<tr><td>' + new Date(e.at).toLocaleTimeString() + '</td><td>' + esc(e.from) + ' &rarr; ' + esc(e.to) +
    '</td><td style="color:#991b1b">' + esc(e.error) + '</td></tr>';
  }).join('');
 }).catch(function(){});
}

function refreshLogs() {
 var level = document.getElementById('log-level').value;
 fetch('/api/logs' + (level ? '?level=' + level : '')).then(function(r){return r.json()}).then(function(data) {
  var logs = data.logs || [];
  var html = '';
  // Show newest first
  for (var i = logs.length - 1; i >= 0; i--) {
   var l = logs[i];
   var lc = l.level === 'error' ? 'log-error' : (l.level === 'warn' ? 'log-warn' : 'log-info');
   html += '<div class="log-entry"><span class="log-time">[' + esc(new Date(l.timestamp).toLocaleString()) + ']</span> <span class="' + lc + '">' +
    esc((l.level || 'info').toUpperCase()) + '</span> ' + esc(l.message) + '</div>';
  }
  document.getElementById('log-viewer').innerHTML = html || '<div style="color:#555">No log entries</div>';
 }).catch(function(){});
}

function feedAction(action) {
 fetch('/api/feed/' + action, {method:'POST'}).then(function(r){return r.json()}).then(function(data) {
  toast(data.success ? 'Done' : data.error, data.success ? 'success' : 'error');
  refresh();
 }).catch(function(){ toast('Network error', 'error'); });
}

function sortBy(key) {
 if (state.sort === key) state.order = state.order === 'asc' ? 'desc' : 'asc';
 else { state.sort = key; state.order = 'asc'; }
 refreshDevices();
}

function movePage(delta) {
 var next = state.page + delta;
 if (next < 1 || next > state.totalPages) return;
 state.page = next;
 refreshDevices();
}

function resetPage() {
 state.page = 1;
 refreshDevices();
}

function refresh() {
 refreshHeader();
 if (state.current === 'devices') refreshDevices();
 if (state.current === 'connection') refreshEvents();
 if (state.current === 'logs') refreshLogs();
}

function badge(s) {
 var cls = /run|online|success/i.test(s || '') ? 'badge-green' : (/err|fail|offline/i.test(s || '') ? 'badge-red' : (/idle|wait/i.test(s || '') ? 'badge-yellow' : 'badge-gray'));
 return '<span class="badge ' + cls + '">' + esc(s || 'unknown') + '</span>';
}

function toast(msg, type) {
 var root = document.getElementById('toast-root');
 var el = document.createElement('div');
 el.className = 'toast toast-' + (type || 'success');
 el.textContent = msg;
 root.appendChild(el);
 setTimeout(function() { el.remove(); }, 4000);
}

function esc(s) {
 if (s === null || s === undefined) return '';
 var d = document.createElement('div');
 d.appendChild(document.createTextNode(String(s)));
 return d.innerHTML;
}

function timeAgo(ts) {
 if (!ts || ts.indexOf('0001-') === 0) return '-';
 var secs = Math.floor((Date.now() - new Date(ts).getTime()) / 1000);
 if (secs < 5) return 'just now';
 if (secs < 60) return secs + 's ago';
 if (secs < 3600) return Math.floor(secs/60) + 'm ago';
 if (secs < 86400) return Math.floor(secs/3600) + 'h ago';
 return Math.floor(secs/86400) + 'd ago';
}

refresh();
setInterval(refresh, 5000);
</script>
</body>
</html>`
