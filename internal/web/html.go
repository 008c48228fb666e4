package web

// Single-page dashboard: balances and limits on the left, action form
// with live preview on the right.
const indexHTML = `<!DOCTYPE html>
<html lang="en">
<head>
  <meta charset="utf-8" />
  <title>vaultdesk</title>
  <link rel="preconnect" href="https://fonts.googleapis.com">
  <link rel="preconnect" href="https://fonts.gstatic.com" crossorigin>
  <link href="https://fonts.googleapis.com/css2?family=Space+Mono:wght@400;700&display=swap" rel="stylesheet">
  <style>
    :root {
      --bg:#ffffff;
      --ink:#111111;
      --ink-mid:#4d4d4d;
      --panel:#f6f6f6;
    }
    * { box-sizing:border-box; }
    body {
      margin:0;
      min-height:100vh;
      display:flex;
      align-items:center;
      justify-content:center;
      padding:2rem;
      background:var(--bg);
      color:var(--ink);
      font-family:'Space Mono',monospace;
    }
    #app {
      width:min(1100px, 96vw);
      background:var(--panel);
      border:3px solid var(--ink);
      padding:2rem;
      box-shadow:12px 12px 0 rgba(0,0,0,.15);
      display:grid;
      grid-template-columns:1fr 380px;
      gap:2rem;
    }
    header { grid-column:1 / -1; display:flex; justify-content:space-between; align-items:center; }
    .eyebrow { font-size:.7rem; text-transform:uppercase; letter-spacing:.2em; margin:0; font-weight:700; }
    .status {
      font-size:.65rem; text-transform:uppercase; letter-spacing:.1em;
      border:2px solid var(--ink); padding:.4rem .9rem; background:#fff;
      box-shadow:4px 4px 0 rgba(0,0,0,.15);
    }
    .card {
      border:3px solid var(--ink); padding:1.2rem; background:#fff;
      box-shadow:6px 6px 0 rgba(0,0,0,.12); margin-bottom:1rem;
    }
    .card h3 { margin:0 0 .8rem; font-size:.7rem; text-transform:uppercase; letter-spacing:.15em; }
    .row { display:flex; justify-content:space-between; font-size:.72rem; padding:.25rem 0; }
    .row .k { color:var(--ink-mid); }
    select, input, button {
      width:100%; font-family:inherit; font-size:.8rem; padding:.5rem;
      border:2px solid var(--ink); background:#fff; margin-bottom:.7rem;
    }
    button { cursor:pointer; font-weight:700; text-transform:uppercase; letter-spacing:.1em; box-shadow:4px 4px 0 rgba(0,0,0,.15); }
    button:active { transform:translate(2px,2px); box-shadow:2px 2px 0 rgba(0,0,0,.15); }
    .leg { font-size:.7rem; padding:.2rem 0; }
    .leg.provide::before { content:'\2192 '; }
    .leg.receive::before { content:'\2190 '; }
    .error { color:#d7263d; font-size:.68rem; }
    @media (max-width:720px) { #app { grid-template-columns:1fr; } }
  </style>
</head>
<body>
  <div id="app">
    <header>
      <p class="eyebrow">vaultdesk</p>
      <div id="sse-status" class="status">Connecting…</div>
    </header>
    <div>
      <div class="card">
        <h3>Balances</h3>
        <div id="balances"></div>
      </div>
      <div class="card">
        <h3>Limits</h3>
        <div id="limits"></div>
      </div>
      <button id="refresh">Refresh</button>
    </div>
    <div>
      <div class="card">
        <h3>Action</h3>
        <select id="action">
          <option value="deposit">deposit</option>
          <option value="mint">mint</option>
          <option value="withdraw">withdraw</option>
          <option value="redeem">redeem</option>
          <option value="provide">provide</option>
          <option value="burn">burn</option>
          <option value="lowLevelRebalanceBorrow">rebalance borrow</option>
          <option value="lowLevelRebalanceCollateral">rebalance collateral</option>
          <option value="executeAuctionBorrow">auction borrow</option>
          <option value="executeAuctionCollateral">auction collateral</option>
          <option value="flashLoanMint">flash-loan mint</option>
          <option value="flashLoanRedeem">flash-loan redeem</option>
        </select>
        <select id="side">
          <option value="borrow">borrow side</option>
          <option value="collateral">collateral side</option>
        </select>
        <input id="amount" placeholder="amount" autocomplete="off" />
        <div id="preview"></div>
        <button id="submit">Submit</button>
        <div id="submit-result" class="error"></div>
      </div>
    </div>
  </div>
<script>
const statusEl = document.getElementById('sse-status');
const balancesEl = document.getElementById('balances');
const limitsEl = document.getElementById('limits');
const previewEl = document.getElementById('preview');
const resultEl = document.getElementById('submit-result');

function renderRows(el, obj){
  el.innerHTML = '';
  for(const [k, v] of Object.entries(obj)){
    const row = document.createElement('div');
    row.className = 'row';
    row.innerHTML = '<span class="k">' + k.replace(/_/g, ' ') + '</span><span>' + v + '</span>';
    el.appendChild(row);
  }
}

function renderState(state){
  statusEl.textContent = state.status + (state.manual_loading ? ' (refreshing)' : '');
  renderRows(balancesEl, state.balances);
  renderRows(limitsEl, state.limits);
}

function renderPreview(p){
  previewEl.innerHTML = '';
  if(p.invalid){ return; }
  if(p.error){
    previewEl.innerHTML = '<div class="error">' + p.error + '</div>';
    return;
  }
  for(const leg of (p.legs || [])){
    const div = document.createElement('div');
    div.className = 'leg ' + leg.direction;
    div.textContent = leg.amount + ' ' + leg.kind;
    previewEl.appendChild(div);
  }
}

function connect(){
  const source = new EventSource('/events');
  source.addEventListener('state', (e) => renderState(JSON.parse(e.data)));
  source.addEventListener('preview', (e) => renderPreview(JSON.parse(e.data)));
  source.addEventListener('error', () => {
    statusEl.textContent = 'Reconnecting…';
    source.close();
    setTimeout(connect, 2000);
  });
}
connect();

let inputTimer = null;
document.getElementById('amount').addEventListener('input', (e) => {
  clearTimeout(inputTimer);
  inputTimer = setTimeout(() => {
    fetch('/api/input', {
      method:'POST',
      headers:{'Content-Type':'application/json'},
      body: JSON.stringify({
        action: document.getElementById('action').value,
        side: document.getElementById('side').value,
        raw: e.target.value
      })
    });
  }, 100);
});

document.getElementById('refresh').addEventListener('click', async () => {
  const resp = await fetch('/api/refresh', { method:'POST' });
  renderState(await resp.json());
});

document.getElementById('submit').addEventListener('click', async () => {
  resultEl.textContent = '';
  const resp = await fetch('/api/submit', {
    method:'POST',
    headers:{'Content-Type':'application/json'},
    body: JSON.stringify({
      action: document.getElementById('action').value,
      side: document.getElementById('side').value,
      amount: document.getElementById('amount').value
    })
  });
  const body = await resp.json();
  if(body.silent){ return; }
  if(body.error){ resultEl.textContent = body.error; }
});
</script>
</body>
</html>`
