package server

// loginPage is the minimal HTML form served at the root path for manual
// credential checks against the HTTP auth endpoints.
const loginPage = `<!DOCTYPE html>
<html>
<head>
	<title>SSH WebSocket Bridge</title>
	<style>
		body { font-family: Arial, sans-serif; max-width: 400px; margin: 50px auto; padding: 20px; }
		.form-group { margin-bottom: 15px; }
		label { display: block; margin-bottom: 5px; }
		input { width: 100%; padding: 8px; border: 1px solid #ddd; border-radius: 4px; }
		button { background: #007bff; color: white; padding: 10px 20px; border: none; border-radius: 4px; cursor: pointer; }
		.status { margin-top: 20px; padding: 10px; border-radius: 4px; }
		.success { background: #d4edda; color: #155724; }
		.error { background: #f8d7da; color: #721c24; }
	</style>
</head>
<body>
	<h2>SSH WebSocket Bridge Login</h2>
	<form id="loginForm">
		<div class="form-group">
			<label for="identifier">Identifier:</label>
			<input type="text" id="identifier" name="identifier" required>
		</div>
		<div class="form-group">
			<label for="secret">Secret:</label>
			<input type="password" id="secret" name="secret" required>
		</div>
		<button type="submit">Login</button>
	</form>
	<div id="status"></div>
	<script>
		document.getElementById('loginForm').addEventListener('submit', async (e) => {
			e.preventDefault();
			const data = Object.fromEntries(new FormData(e.target));
			const statusEl = document.getElementById('status');
			try {
				const resp = await fetch('auth/login', {
					method: 'POST',
					headers: { 'Content-Type': 'application/json' },
					body: JSON.stringify(data)
				});
				const result = await resp.json();
				if (result.success) {
					statusEl.innerHTML = '<div class="status success">Login successful as ' + result.user.identifier + '</div>';
				} else {
					statusEl.innerHTML = '<div class="status error">Login failed: ' + result.error + '</div>';
				}
			} catch (err) {
				statusEl.innerHTML = '<div class="status error">Error: ' + err.message + '</div>';
			}
		});
	</script>
</body>
</html>
`
