package webmonitor

const indexHTML = `
<!DOCTYPE html>
<html>
<head>
    <title>Tape Width Monitor</title>
    <meta name="viewport" content="width=device-width, initial-scale=1.0">
    <style>
        * { box-sizing: border-box; }
        body { margin: 0; font-family: -apple-system, "Segoe UI", sans-serif; background: #11161d; color: #e6e9ee; }
        .app { max-width: 1100px; margin: 0 auto; padding: 20px; }
        .header { display: flex; justify-content: space-between; align-items: center; margin-bottom: 16px; }
        .title { font-size: 22px; font-weight: 600; }
        .badge { padding: 4px 12px; border-radius: 12px; font-size: 13px; background: #2a3240; }
        .badge.armed { background: #1d4ed8; }
        .badge.alerting { background: #b91c1c; }
        .badge.action_triggered { background: #b45309; }
        .grid { display: grid; grid-template-columns: 2fr 1fr; gap: 16px; }
        .panel { background: #1a212b; border-radius: 8px; padding: 16px; }
        .panel h2 { margin: 0 0 4px; font-size: 16px; }
        .panel-subtitle { margin: 0 0 12px; font-size: 12px; color: #8a94a3; }
        #stream { width: 100%; height: auto; display: block; background: #000; border-radius: 4px; }
        .stat-grid { display: grid; grid-template-columns: 1fr 1fr; gap: 10px; }
        .stat { background: #222b38; border-radius: 6px; padding: 10px; }
        .stat-label { display: block; font-size: 11px; color: #8a94a3; text-transform: uppercase; }
        .stat-value { display: block; font-size: 20px; font-weight: 600; margin-top: 2px; }
        .row { display: flex; gap: 8px; margin-top: 10px; }
        input[type=number], input[type=text] { flex: 1; background: #11161d; border: 1px solid #2a3240;
                             color: #e6e9ee; border-radius: 4px; padding: 8px; font-size: 14px; }
        .settings-grid { display: grid; grid-template-columns: repeat(5, 1fr) auto; gap: 8px; align-items: end; }
        .field label { display: block; font-size: 11px; color: #8a94a3; margin-bottom: 4px; }
        .field input { width: 100%; }
        .btn { border: 0; border-radius: 4px; padding: 8px 14px; font-size: 14px; cursor: pointer; color: #fff; }
        .btn-primary { background: #1d4ed8; }
        .btn-danger { background: #b91c1c; }
        .btn-warn { background: #b45309; }
        .msg { margin-top: 8px; font-size: 12px; color: #8a94a3; min-height: 16px; }
    </style>
</head>
<body>
    <div class="app">
        <div class="header">
            <div class="title">Tape Width Monitor</div>
            <span class="badge" id="status-badge">connecting...</span>
        </div>

        <div class="grid">
            <div class="panel" style="grid-row: span 3;">
                <h2>Live Measurement</h2>
                <p class="panel-subtitle">Overlay stream: scan line (green), detected segment (red)</p>
                <img id="stream" src="/stream" alt="Measurement overlay stream">
            </div>

            <div class="panel">
                <h2>Current Reading</h2>
                <div class="stat-grid">
                    <div class="stat">
                        <span class="stat-label">Width</span>
                        <span class="stat-value" id="width-mm">--</span>
                    </div>
                    <div class="stat">
                        <span class="stat-label">Pixels</span>
                        <span class="stat-value" id="pixel-length">--</span>
                    </div>
                    <div class="stat">
                        <span class="stat-label">Threshold</span>
                        <span class="stat-value" id="threshold">--</span>
                    </div>
                    <div class="stat">
                        <span class="stat-label">Rate mm/px</span>
                        <span class="stat-value" id="rate">--</span>
                    </div>
                </div>
            </div>

            <div class="panel">
                <h2>Calibration</h2>
                <p class="panel-subtitle">Enter the known physical length of the object in view</p>
                <div class="row">
                    <input type="number" id="known-length" step="0.1" min="0" placeholder="length (mm)">
                    <button class="btn btn-primary" onclick="calibrate()">Calibrate</button>
                </div>
                <div class="msg" id="calibrate-msg"></div>
            </div>

            <div class="panel">
                <h2>Monitoring</h2>
                <p class="panel-subtitle">Auto-inflate fires after 3 consecutive low readings</p>
                <div class="row">
                    <input type="number" id="threshold-input" step="0.1" min="0" placeholder="threshold (mm)">
                    <button class="btn btn-primary" onclick="startMonitor()">Start</button>
                    <button class="btn btn-danger" onclick="stopMonitor()">Stop</button>
                </div>
                <div class="row">
                    <button class="btn btn-warn" style="flex:1" onclick="inflate()">Inflate Now</button>
                </div>
                <div class="msg" id="monitor-msg"></div>
            </div>

            <div class="panel" style="grid-column: 1 / -1;">
                <h2>Settings</h2>
                <p class="panel-subtitle">Persisted to the settings file; applied on the next cycle</p>
                <div class="settings-grid">
                    <div class="field">
                        <label for="set-camera">Camera host</label>
                        <input type="text" id="set-camera">
                    </div>
                    <div class="field">
                        <label for="set-inflator">Inflator host</label>
                        <input type="text" id="set-inflator">
                    </div>
                    <div class="field">
                        <label for="set-duration">Inflate duration (s)</label>
                        <input type="number" id="set-duration" step="0.5" min="0">
                    </div>
                    <div class="field">
                        <label for="set-wait">Post-inflate wait (s)</label>
                        <input type="number" id="set-wait" step="1" min="0">
                    </div>
                    <div class="field">
                        <label for="set-ratio">Line ratio</label>
                        <input type="number" id="set-ratio" step="0.05" min="0" max="1">
                    </div>
                    <button class="btn btn-primary" onclick="saveSettings()">Save</button>
                </div>
                <div class="msg" id="settings-msg"></div>
            </div>
        </div>
    </div>

    <script>
        function setMsg(id, text) { document.getElementById(id).textContent = text; }

        async function post(url, body, msgID) {
            try {
                const resp = await fetch(url, {
                    method: 'POST',
                    headers: { 'Content-Type': 'application/json' },
                    body: body ? JSON.stringify(body) : null,
                });
                const data = await resp.json();
                setMsg(msgID, resp.ok ? (data.message || 'ok') : (data.error || 'request failed'));
            } catch (err) {
                setMsg(msgID, 'request failed: ' + err);
            }
        }

        function calibrate() {
            const v = parseFloat(document.getElementById('known-length').value);
            post('/api/calibrate', { known_length_mm: v }, 'calibrate-msg');
        }
        function startMonitor() {
            const v = parseFloat(document.getElementById('threshold-input').value);
            post('/api/monitor/start', { threshold_mm: v }, 'monitor-msg');
        }
        function stopMonitor() { post('/api/monitor/stop', null, 'monitor-msg'); }
        function inflate() { post('/api/inflate', null, 'monitor-msg'); }

        async function loadSettings() {
            try {
                const st = await (await fetch('/api/settings')).json();
                document.getElementById('set-camera').value = st.camera_host || '';
                document.getElementById('set-inflator').value = st.inflator_host || '';
                document.getElementById('set-duration').value = st.inflate_duration_seconds;
                document.getElementById('set-wait').value = st.post_inflate_wait_seconds;
                document.getElementById('set-ratio').value = st.detection_line_ratio;
            } catch (err) {
                setMsg('settings-msg', 'failed to load settings');
            }
        }

        function saveSettings() {
            post('/api/settings', {
                camera_host: document.getElementById('set-camera').value,
                inflator_host: document.getElementById('set-inflator').value,
                inflate_duration_seconds: parseFloat(document.getElementById('set-duration').value),
                post_inflate_wait_seconds: parseInt(document.getElementById('set-wait').value, 10),
                detection_line_ratio: parseFloat(document.getElementById('set-ratio').value),
            }, 'settings-msg');
        }
        loadSettings();

        function applyStatus(st) {
            const badge = document.getElementById('status-badge');
            badge.textContent = st.state;
            badge.className = 'badge ' + st.state;
            document.getElementById('width-mm').textContent =
                st.calibration_rate > 0 ? st.width_mm.toFixed(2) + ' mm' : 'uncalibrated';
            document.getElementById('pixel-length').textContent = st.pixel_length + ' px';
            document.getElementById('threshold').textContent =
                st.monitoring ? st.threshold_mm.toFixed(2) + ' mm' : 'off';
            document.getElementById('rate').textContent =
                st.calibration_rate > 0 ? st.calibration_rate.toFixed(4) : '--';
        }

        const source = new EventSource('/api/status/stream');
        source.onmessage = (ev) => {
            try { applyStatus(JSON.parse(ev.data).session); } catch (e) { /* ignore */ }
        };
        source.onerror = () => {
            document.getElementById('status-badge').textContent = 'disconnected';
            document.getElementById('status-badge').className = 'badge';
        };
    </script>
</body>
</html>
`
